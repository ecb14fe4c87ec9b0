package api

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 6

var (
	ErrMissingCredentials = errors.New("please enter both email and password")
	ErrInvalidEmail       = errors.New("please enter a valid email address")
	ErrShortPassword      = errors.New("password must be at least 6 characters long")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// ValidateEmail accepts anything with an @ and a dot after it.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrMissingCredentials
	}
	at := strings.Index(email, "@")
	if at <= 0 || !strings.Contains(email[at:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateRegistration checks a new account's credentials before they are
// sent. confirm is the repeated password.
func ValidateRegistration(email, password, confirm string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return ErrMissingCredentials
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return ErrShortPassword
	}
	return nil
}
