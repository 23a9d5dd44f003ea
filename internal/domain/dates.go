package domain

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the stored booking date format. Fixed width keeps lexicographic order equal
// to chronological order.
const DateLayout = "2006-01-02T15:04:05.000Z"

var ErrInvalidDate = errors.New("domain: invalid date")

// CanonicalDate formats t in the stored layout.
func CanonicalDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseBookingDate accepts a calendar date (interpreted as midnight in loc) or an RFC 3339
// timestamp and returns the canonical stored form.
func ParseBookingDate(raw string, loc *time.Location) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return CanonicalDate(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return CanonicalDate(t), nil
	}
	return "", ErrInvalidDate
}

// DayRange returns the canonical bounds [start of day, start of next day) for the calendar
// day containing t in loc.
func DayRange(t time.Time, loc *time.Location) (string, string) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return CanonicalDate(start), CanonicalDate(end)
}

// CalendarDayRange parses a calendar date and returns its bounds in loc.
func CalendarDayRange(raw string, loc *time.Location) (string, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), loc)
	if err != nil {
		return "", "", ErrInvalidDate
	}
	start, end := DayRange(t, loc)
	return start, end, nil
}
