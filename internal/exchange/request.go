package exchange

import (
	"errors"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/models"
)

// Request builder errors.
var (
	ErrNotContinuable = errors.New("message did not stop for length and cannot be continued")
	ErrNoTarget       = errors.New("target message is not in the chat")
)

// Request is the single frame sent when the stream opens.
type Request struct { //nolint:govet // fieldalignment: preserving logical field order
	Messages     []chat.Message `json:"messages"`
	Model        string         `json:"model"`
	Temperature  float64        `json:"temperature"`
	Prompt       string         `json:"prompt"`
	ID           string         `json:"id"`
	MaxTokens    int64          `json:"max_tokens"`
	Continuation string         `json:"continuation,omitempty"`
	APIKey       string         `json:"api_key,omitempty"`

	// Credential authenticates the stream; it is not part of the frame.
	Credential models.Credential `json:"-"`
}

func newRequest(s *chat.Session, target *chat.Message, inclusive bool, user *models.User, cred models.Credential) *Request {
	return &Request{
		Messages:    s.Prefix(target.ID, inclusive),
		Model:       s.Settings.Model,
		Temperature: s.Settings.Temperature(),
		Prompt:      s.Settings.Prompt,
		ID:          target.ID,
		MaxTokens:   s.Settings.MaxTokens,
		APIKey:      s.Settings.EffectiveAPIKey(user),
		Credential:  cred,
	}
}

// ChatRequest targets a reply at target, which must already be in s. The
// history sent ends with the target.
func ChatRequest(s *chat.Session, target *chat.Message, user *models.User, cred models.Credential) (*Request, error) {
	if target == nil || s.IndexOf(target.ID) < 0 {
		return nil, ErrNoTarget
	}
	return newRequest(s, target, true, user, cred), nil
}

// ContinueRequest extends a reply that stopped for length, seeding the
// exchange with the reply's current content.
func ContinueRequest(s *chat.Session, target *chat.Message, user *models.User, cred models.Credential) (*Request, error) {
	if target == nil || s.IndexOf(target.ID) < 0 {
		return nil, ErrNoTarget
	}
	if !target.Continuable() {
		return nil, ErrNotContinuable
	}
	req := newRequest(s, target, true, user, cred)
	req.Continuation = target.Content
	return req, nil
}

// RerollRequest regenerates target from the history strictly before it.
func RerollRequest(s *chat.Session, target *chat.Message, user *models.User, cred models.Credential) (*Request, error) {
	if target == nil || s.IndexOf(target.ID) < 0 {
		return nil, ErrNoTarget
	}
	return newRequest(s, target, false, user, cred), nil
}
