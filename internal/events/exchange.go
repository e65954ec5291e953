package events

import "time"

// ExchangeEventType represents streaming exchange lifecycle events.
type ExchangeEventType string

// Exchange event type constants.
const (
	ExchangeEventStarted   ExchangeEventType = "started"
	ExchangeEventState     ExchangeEventType = "state"
	ExchangeEventProgress  ExchangeEventType = "progress"
	ExchangeEventCompleted ExchangeEventType = "completed"
	ExchangeEventFailed    ExchangeEventType = "failed"
	ExchangeEventCancelled ExchangeEventType = "cancelled"
)

// ExchangeEvent reports progress of one streaming exchange.
type ExchangeEvent struct { //nolint:govet // fieldalignment: preserving logical field order
	Epoch     uint64
	MessageID string
	Type      ExchangeEventType
	Timestamp time.Time

	// Optional fields
	State   string  // For State
	Content string  // For Progress: full content so far
	CostUSD float64 // For Progress
	Error   error   // For Failed
}

// NewExchangeStartedEvent creates an exchange started event.
func NewExchangeStartedEvent(epoch uint64, messageID string) ExchangeEvent {
	return ExchangeEvent{
		Epoch:     epoch,
		MessageID: messageID,
		Type:      ExchangeEventStarted,
		Timestamp: time.Now(),
	}
}

// NewExchangeStateEvent creates a protocol state transition event.
func NewExchangeStateEvent(epoch uint64, messageID, state string) ExchangeEvent {
	return ExchangeEvent{
		Epoch:     epoch,
		MessageID: messageID,
		Type:      ExchangeEventState,
		State:     state,
		Timestamp: time.Now(),
	}
}

// NewExchangeProgressEvent creates a partial update event.
func NewExchangeProgressEvent(epoch uint64, messageID, content string, cost float64) ExchangeEvent {
	return ExchangeEvent{
		Epoch:     epoch,
		MessageID: messageID,
		Type:      ExchangeEventProgress,
		Content:   content,
		CostUSD:   cost,
		Timestamp: time.Now(),
	}
}

// NewExchangeTerminatedEvent creates the terminal event of an exchange:
// completed, cancelled, or failed when err is non-nil.
func NewExchangeTerminatedEvent(epoch uint64, messageID string, cancelled bool, err error) ExchangeEvent {
	typ := ExchangeEventCompleted
	switch {
	case err != nil:
		typ = ExchangeEventFailed
	case cancelled:
		typ = ExchangeEventCancelled
	}
	return ExchangeEvent{
		Epoch:     epoch,
		MessageID: messageID,
		Type:      typ,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// Terminal reports whether the event ends its exchange.
func (e ExchangeEvent) Terminal() bool {
	switch e.Type {
	case ExchangeEventCompleted, ExchangeEventFailed, ExchangeEventCancelled:
		return true
	default:
		return false
	}
}
