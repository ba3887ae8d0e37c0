// Package validate checks free text and links that cross the service
// boundary: request text from callers and URLs from providers or config.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Text validation errors.
var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
)

// TextConstraints defines validation constraints for free text.
type TextConstraints struct {
	MaxLength  int  // Maximum length in characters (0 = no maximum)
	AllowEmpty bool // Whether empty strings are allowed
	TrimSpace  bool // Whether to trim whitespace before validation
}

// Text validates s against the constraints and returns it, trimmed when
// requested. Control characters other than tab and newline are rejected.
func Text(s string, constraints TextConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}

	length := utf8.RuneCountInString(s)
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
		}
	}
	return s, nil
}
