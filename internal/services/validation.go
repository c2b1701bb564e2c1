package services

import (
	"regexp"
	"unicode"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer input.
	maxPasswordBytes = 72
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^(\+92\d{10}|03\d{9})$`)
)

const (
	msgInvalidPhone    = "Phone number must be in format +92XXXXXXXXXX or 03XXXXXXXXX"
	msgWeakPassword    = "Password must be at least 8 chars and contain letters and numbers"
	msgInvalidEmailFmt = "Invalid email format"
	msgLongPassword    = "Password must be at most 72 bytes"
)

func isEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func isPhoneNumber(s string) bool {
	return phonePattern.MatchString(s)
}

func isPasswordTooLong(s string) bool {
	return len(s) > maxPasswordBytes
}

// isStrongPassword requires a length bcrypt accepts, at least the minimum,
// plus at least one letter and one digit.
func isStrongPassword(s string) bool {
	if len(s) < minPasswordLength || isPasswordTooLong(s) {
		return false
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
