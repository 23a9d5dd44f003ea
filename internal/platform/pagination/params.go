package pagination

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is the number of items returned when the client omits size.
	DefaultPageSize = 9
	// DefaultMaxPageSize caps size to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

// Params describes a 1-indexed page request.
type Params struct {
	Page int
	Size int
}

// Offset returns the number of records to skip before the page starts.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Size <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

var (
	ErrInvalidPage     = errors.New("pagination: invalid page")
	ErrInvalidPageSize = errors.New("pagination: invalid size")
)

// FromRequest parses page and size from the request query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads page and size from values. Missing values fall back to page 1 and the default
// size; a size above the maximum is clamped.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	page := 1
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPage)
		}
		if value < 1 {
			return Params{}, fmt.Errorf("%w: must be at least 1", ErrInvalidPage)
		}
		page = value
	}

	size, err := parsePageSize(values.Get("size"), opts)
	if err != nil {
		return Params{}, err
	}
	if page-1 > math.MaxInt/size {
		return Params{}, fmt.Errorf("%w: out of range", ErrInvalidPage)
	}
	return Params{Page: page, Size: size}, nil
}

func parsePageSize(raw string, opts Options) (int, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}

	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}

	if strings.TrimSpace(raw) == "" {
		return defaultPageSize, nil
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > maxPageSize {
		value = maxPageSize
	}
	return value, nil
}

// Must ensures Page and Size are initialised before use.
func Must(params Params) Params {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = DefaultPageSize
	}
	return params
}

// Window slices items to the requested page. Used where filtering happens in memory.
func Window[T any](items []T, params Params) []T {
	params = Must(params)
	start := params.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + params.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
