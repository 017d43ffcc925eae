package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tendant/true-feedback/pkg/domain"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 20
	VerifyCodeDigits  = 6
)

var (
	usernameRegex   = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	verifyCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidateUsername checks the 3-20 character letters, digits and underscore rule.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return domain.ErrInvalidUsername
	}
	return nil
}

// ValidatePassword enforces the password length bounds, counted in characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return domain.ErrWeakPassword
	}
	return nil
}

// ValidateVerifyCode checks that code is exactly six ASCII digits.
func ValidateVerifyCode(code string) error {
	if !verifyCodeRegex.MatchString(code) {
		return domain.ErrInvalidCode
	}
	return nil
}

// IsEmail reports whether a sign-in identifier should be treated as an email.
func IsEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
