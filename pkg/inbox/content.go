package inbox

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/true-feedback/pkg/domain"
)

// CleanContent removes control characters except newline, carriage return
// and tab.
func CleanContent(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// ValidateContent checks the message length in characters. Whitespace-only
// content counts as empty.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.ErrInvalidMessage
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return domain.ErrInvalidMessage
	}
	return nil
}
