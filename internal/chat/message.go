// Package chat provides the conversation model: messages, settings, labels
// and cost accounting for a single chat session.
package chat

import (
	"github.com/google/uuid"
)

// Role represents the role of a message sender.
type Role string

// Role constants.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// FinishReasonLength marks a reply that stopped on its token budget and can
// be continued.
const FinishReasonLength = "length"

// Message is one entry of a conversation. Its JSON form is also the
// representation the generation service streams back.
type Message struct {
	ID               string  `json:"id"`
	Role             Role    `json:"role"`
	Content          string  `json:"message,omitempty"`
	PromptTokens     int64   `json:"prompt_tokens,omitempty"`
	CompletionTokens int64   `json:"completion_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd,omitempty"`
	FinishReason     string  `json:"finish_reason,omitempty"`
	Error            string  `json:"error,omitempty"`

	// StartInEditMode asks the UI to open a freshly inserted message for
	// editing. It is never persisted.
	StartInEditMode bool `json:"-"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:      uuid.New().String(),
		Role:    role,
		Content: content,
	}
}

// HasContent reports whether the message carries any text.
func (m *Message) HasContent() bool {
	return m.Content != ""
}

// Continuable reports whether generation stopped on the token budget.
func (m *Message) Continuable() bool {
	return m.FinishReason == FinishReasonLength
}

// TotalTokens returns prompt plus completion tokens.
func (m *Message) TotalTokens() int64 {
	return m.PromptTokens + m.CompletionTokens
}

// WithError returns a copy of the message carrying an error description.
func (m *Message) WithError(desc string) *Message {
	c := *m
	c.Error = desc
	return &c
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	c := *m
	return &c
}
