package events

import "time"

// PersistEventType represents persistence flush outcomes.
type PersistEventType string

// Persist event type constants.
const (
	PersistEventFlushed     PersistEventType = "flushed"
	PersistEventFlushFailed PersistEventType = "flush_failed"
)

// PersistEvent reports one persistence flush.
type PersistEvent struct { //nolint:govet // fieldalignment: preserving logical field order
	ChatID    string
	Remote    bool // Chat was mirrored to the remote store
	Type      PersistEventType
	Timestamp time.Time
	Error     error
}

// NewPersistEvent creates a flush outcome event.
func NewPersistEvent(chatID string, remote bool, err error) PersistEvent {
	typ := PersistEventFlushed
	if err != nil {
		typ = PersistEventFlushFailed
	}
	return PersistEvent{
		ChatID:    chatID,
		Remote:    remote,
		Type:      typ,
		Timestamp: time.Now(),
		Error:     err,
	}
}
