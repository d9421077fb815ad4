package models

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// User is an account known to the identity provider.
type User struct {
	ID        string    `json:"uid" yaml:"uid"`
	Email     string    `json:"email" yaml:"email"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks signup input.
func ValidateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email is badly formatted")
	}
	if len(password) < MinPasswordLength {
		return errors.New("password should be at least 6 characters")
	}
	return nil
}
