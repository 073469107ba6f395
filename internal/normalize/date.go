package normalize

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateFormats is the ordered list of accepted calendar date layouts.
// The first matching layout wins, so ISO dates take priority over the
// ambiguous day-first forms.
var DateFormats = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"2006/01/02",
}

// ParseDate parses a calendar date using DateFormats. It never applies
// a default: the tabular and document parsers fall back to today, which
// is their decision, not this package's.
func ParseDate(text string) (civil.Date, error) {
	return ParseDateFormats(text, DateFormats)
}

// ParseDateFormats parses a calendar date trying each layout in order.
func ParseDateFormats(text string, layouts []string) (civil.Date, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return civil.Date{}, ErrInvalidDate
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, ErrInvalidDate
}
