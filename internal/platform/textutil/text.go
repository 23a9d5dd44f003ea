package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	upper        = cases.Upper(language.Und)
	lower        = cases.Lower(language.Und)
)

// PlainText strips markup from user-supplied free text and trims it to maxRunes.
// A non-positive maxRunes disables truncation.
func PlainText(value string, maxRunes int) string {
	cleaned := strictPolicy.Sanitize(strings.TrimSpace(value))
	cleaned = strings.TrimSpace(html.UnescapeString(cleaned))
	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return cleaned
}

// UpperCode trims and upper-cases an identifier such as a coupon code.
func UpperCode(value string) string {
	return upper.String(strings.TrimSpace(value))
}

// LowerKey trims and lower-cases a lookup key such as an email address or category.
func LowerKey(value string) string {
	return lower.String(strings.TrimSpace(value))
}

// ContainsFold reports whether needle appears in haystack ignoring case.
func ContainsFold(haystack, needle string) bool {
	needle = LowerKey(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(LowerKey(haystack), needle)
}
