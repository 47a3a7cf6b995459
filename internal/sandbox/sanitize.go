package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInputTooLong is returned when sanitized free text still exceeds the
// configured ceiling.
var ErrInputTooLong = errors.New("input exceeds the length ceiling")

// SanitizeText strips control characters from free text (tab, newline and
// carriage return survive) and enforces the length ceiling on the cleaned,
// trimmed result. A ceiling of zero or less means unbounded.
func SanitizeText(s string, maxLen int) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimSpace(cleaned)

	if maxLen > 0 && len(cleaned) > maxLen {
		return "", fmt.Errorf("%w: %d > %d characters", ErrInputTooLong, len(cleaned), maxLen)
	}
	return cleaned, nil
}
