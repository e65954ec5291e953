// Package models provides the account types shared across parley.
//
// A User is the account that owns saved chats. A Credential is the opaque
// session token the remote store issues at login; it is attached to every
// authenticated remote call and is never inspected by the client.
//
// Example usage:
//
//	if err := models.ValidateName(name); err != nil {
//	    return err
//	}
package models

import (
	"errors"
	"strings"
	"unicode"
)

// User represents an account known to the remote store.
type User struct {
	// ID is the unique identifier assigned by the remote store.
	ID string `json:"id"`

	// Name is the canonical login name.
	Name string `json:"name"`

	// APIKey is the user's default credential for the generation service.
	// Chat settings may override it per chat.
	APIKey string `json:"api_key,omitempty"`
}

// Credential is the session token bound to a logged-in User.
type Credential string

// Empty reports whether no session token is held.
func (c Credential) Empty() bool {
	return c == ""
}

// Validation errors for account names and passwords.
var (
	// ErrEmptyName is returned when the name is empty or whitespace-only.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrNameTooShort is returned when the name is shorter than MinNameLength.
	ErrNameTooShort = errors.New("name must be at least 2 characters")

	// ErrNameTooLong is returned when the name exceeds MaxNameLength.
	ErrNameTooLong = errors.New("name cannot exceed 64 characters")

	// ErrInvalidName is returned when the name contains invalid characters.
	ErrInvalidName = errors.New("name contains invalid characters")

	// ErrEmptyPassword is returned when an account password is empty.
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// Name constraints for account creation.
const (
	MinNameLength = 2
	MaxNameLength = 64
)

// ValidateName checks a login name before it is sent to the remote store.
// Names may contain letters, digits, '-', '_' and '.'.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	if len(name) < MinNameLength {
		return ErrNameTooShort
	}

	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}

	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '.' {
			return ErrInvalidName
		}
	}

	return nil
}

// ValidatePassword rejects empty passwords.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Clone returns a copy of the user, or nil for a nil user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// DisplayName returns the name, or "anonymous" for a nil user.
func (u *User) DisplayName() string {
	if u == nil {
		return "anonymous"
	}
	return u.Name
}
