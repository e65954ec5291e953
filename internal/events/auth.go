package events

import "time"

// AuthEventType represents auth-specific event types.
type AuthEventType string

// Auth event type constants.
const (
	AuthEventLoggedIn       AuthEventType = "logged_in"
	AuthEventLoginFailed    AuthEventType = "login_failed"
	AuthEventLoggedOut      AuthEventType = "logged_out"
	AuthEventForcedLogout   AuthEventType = "forced_logout"
	AuthEventAccountCreated AuthEventType = "account_created"
	AuthEventAccountEdited  AuthEventType = "account_edited"
)

// AuthEvent represents an authentication event.
type AuthEvent struct { //nolint:govet // fieldalignment: preserving logical field order
	UserID    string
	Name      string
	Type      AuthEventType
	Timestamp time.Time

	// Optional fields
	Error error // For LoginFailed, ForcedLogout
}

// NewAuthEvent creates an auth event for a user.
func NewAuthEvent(typ AuthEventType, userID, name string) AuthEvent {
	return AuthEvent{
		UserID:    userID,
		Name:      name,
		Type:      typ,
		Timestamp: time.Now(),
	}
}

// NewLoginFailedEvent creates a login failed event.
func NewLoginFailedEvent(name string, err error) AuthEvent {
	return AuthEvent{
		Name:      name,
		Type:      AuthEventLoginFailed,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// NewForcedLogoutEvent creates a forced logout event.
func NewForcedLogoutEvent(userID string, err error) AuthEvent {
	return AuthEvent{
		UserID:    userID,
		Type:      AuthEventForcedLogout,
		Error:     err,
		Timestamp: time.Now(),
	}
}
