package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyEmail indicates the email address is empty
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates the email address is malformed
	ErrInvalidEmail = errors.New("email must be a valid address like name@example.com")

	// ErrEmailTooLong indicates the address exceeds the RFC 5321 path limit
	ErrEmailTooLong = errors.New("email must be at most 254 characters")
)

const maxEmailLength = 254

// emailRegex accepts a dotted local part and a domain with at least one dot
var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9\-]*[a-z0-9])?)+$`)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Emails are the login identity, so every lookup goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks an already normalised address
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmptyEmail
	}

	if len(email) > maxEmailLength {
		return ErrEmailTooLong
	}

	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}

	local := email[:strings.IndexByte(email, '@')]
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return ErrInvalidEmail
	}

	return nil
}

// IsValidEmail is a convenience wrapper that normalises then validates
func IsValidEmail(email string) bool {
	return ValidateEmail(NormalizeEmail(email)) == nil
}
