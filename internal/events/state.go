// Package events defines domain-specific event types for the pub/sub system.
package events

import (
	"time"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/models"
)

// StateEventType names the change that caused a state publication.
type StateEventType string

// State event type constants.
const (
	StateEventLoaded       StateEventType = "loaded"
	StateEventUserSwitched StateEventType = "user_switched"
	StateEventChatsListed  StateEventType = "chats_listed"
	StateEventChatOpened   StateEventType = "chat_opened"
	StateEventChatLoaded   StateEventType = "chat_loaded"
	StateEventChatSaved    StateEventType = "chat_saved"
	StateEventChatDeleted  StateEventType = "chat_deleted"
	StateEventChatUpdated  StateEventType = "chat_updated"
	StateEventExchange     StateEventType = "exchange"
	StateEventLoggedOut    StateEventType = "logged_out"
	StateEventForcedLogout StateEventType = "forced_logout"
)

// ChatEntry is one row of the chat list.
type ChatEntry struct {
	ID     string
	Label  string
	Loaded bool
	Active bool
}

// StateEvent is a consistent snapshot of the published application state.
// Everything it references is a copy; observers may keep it.
type StateEvent struct { //nolint:govet // fieldalignment: preserving logical field order
	Type       StateEventType
	User       *models.User
	LoggedIn   bool
	Chats      []ChatEntry
	Active     *chat.Session
	ActiveSave bool // Active chat is saved for User
	HasStash   bool
	Busy       bool
	Timestamp  time.Time
}

// NewStateEvent stamps a state snapshot with its cause.
func NewStateEvent(typ StateEventType, snapshot StateEvent) StateEvent {
	snapshot.Type = typ
	snapshot.Timestamp = time.Now()
	return snapshot
}
