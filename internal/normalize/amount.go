// Package normalize provides locale-tolerant parsing of monetary
// amounts and calendar dates. Every parser in the pipeline goes through
// it so that "1 234,50" and "1234.50" mean the same number everywhere.
package normalize

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAmount is returned when no numeric value can be
	// recovered from the input.
	ErrInvalidAmount = errors.New("normalize: invalid amount")

	// ErrInvalidDate is returned when none of the accepted date
	// formats match. Callers decide their own fallback.
	ErrInvalidDate = errors.New("normalize: invalid date")
)

// ParseAmount parses a monetary amount from free text. It strips every
// character except digits, '.' and ',', honoring a single leading sign
// marker ('+', '-' or the Unicode minus '−'). A comma acts as the
// decimal separator only when no dot is present; otherwise commas are
// treated as thousands separators and removed.
func ParseAmount(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	negative := false
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "−"):
		negative = true
		s = strings.TrimPrefix(s, "−")
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}

	if strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if negative {
		value = -value
	}
	return value, nil
}
