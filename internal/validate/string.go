// Package validate provides centralized input validation and sanitization
// utilities for the Inkwell API.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort     = errors.New("string is too short")
	ErrStringTooLong      = errors.New("string is too long")
	ErrForbiddenSubstring = errors.New("string contains a forbidden sequence")
	ErrEmpty              = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength           int      // Minimum length in runes (0 = no minimum)
	MaxLength           int      // Maximum length in runes (0 = no maximum)
	ForbiddenSubstrings []string // Literal sequences that must not appear
	AllowEmpty          bool     // Whether empty strings are allowed
	TrimSpace           bool     // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Rune count, not byte count; titles and bios mix scripts.
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	for _, seq := range constraints.ForbiddenSubstrings {
		if strings.Contains(s, seq) {
			return "", fmt.Errorf("%w: %q", ErrForbiddenSubstring, seq)
		}
	}

	return s, nil
}
