package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errEmptyText   = errors.New("empty text")
	errMissingLink = errors.New("missing nested link")
	errMissingHref = errors.New("missing href")
	errOutOfRange  = errors.New("value out of range")
)

// ParseError reports text that could not be turned into a field value
type ParseError struct {
	Field string
	Text  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s %q: %v", e.Field, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStarCount converts GitHub star count text ("500", "1.2k") into an integer.
// Only a lowercase "k" suffix is understood; the scaled value is truncated.
func ParseStarCount(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, &ParseError{Field: "star count", Text: text, Err: errEmptyText}
	}

	if strings.HasSuffix(trimmed, "k") {
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(trimmed, "k")), 64)
		if err != nil {
			return 0, &ParseError{Field: "star count", Text: text, Err: err}
		}
		v := f * 1000
		if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v <= math.MinInt64 {
			return 0, &ParseError{Field: "star count", Text: text, Err: errOutOfRange}
		}
		return int(v), nil
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, &ParseError{Field: "star count", Text: text, Err: err}
	}
	return n, nil
}
