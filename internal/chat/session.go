package chat

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/guilhermegouw/parley/internal/models"
)

// Session is one conversation: its ordered messages, settings and costs.
//
// Messages are held by pointer; the structural operations below match by
// pointer identity, while streaming updates resolve their target by id.
type Session struct { //nolint:govet // fieldalignment: preserving logical field order
	ID            string     `json:"id,omitempty"`
	UserID        string     `json:"user_id,omitempty"`
	Name          string     `json:"name,omitempty"`
	Messages      []*Message `json:"messages"`
	Settings      Settings   `json:"settings"`
	Cost          float64    `json:"cost"`
	TemporaryName string     `json:"temporary_name,omitempty"`

	inFlightCost float64
	loaded       bool
}

// NewDraft creates an empty, loaded, unsaved session bound to userID.
func NewDraft(userID string, settings Settings) *Session {
	settings.Normalize()
	return &Session{
		UserID:   userID,
		Messages: []*Message{},
		Settings: settings,
		loaded:   true,
	}
}

// Loaded reports whether the messages of the session are present locally.
func (s *Session) Loaded() bool {
	return s.loaded
}

// SetLoaded marks the session as loaded or as a listing-only stub.
func (s *Session) SetLoaded(loaded bool) {
	s.loaded = loaded
}

// IsSaved reports whether the session is saved for user: it has an id, is
// owned by user, and is loaded.
func (s *Session) IsSaved(user *models.User) bool {
	if s == nil || user == nil {
		return false
	}
	return s.ID != "" && s.UserID == user.ID && s.loaded
}

// IsEmpty reports whether the session has no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// Append adds m to the end of the conversation.
func (s *Session) Append(m *Message) {
	s.Messages = append(s.Messages, m)
}

// Delete removes m. No-op if m is not present.
func (s *Session) Delete(m *Message) {
	if i := s.position(m); i >= 0 {
		s.Messages = slices.Delete(s.Messages, i, i+1)
	}
}

// InsertBefore inserts m before ref. A nil ref inserts at the head; a ref
// that is not present makes this a no-op.
func (s *Session) InsertBefore(ref, m *Message) {
	if ref == nil {
		s.Messages = slices.Insert(s.Messages, 0, m)
		return
	}
	if i := s.position(ref); i >= 0 {
		s.Messages = slices.Insert(s.Messages, i, m)
	}
}

// InsertAfter inserts m after ref. A nil ref inserts at the head; a ref
// that is not present makes this a no-op.
func (s *Session) InsertAfter(ref, m *Message) {
	if ref == nil {
		s.Messages = slices.Insert(s.Messages, 0, m)
		return
	}
	if i := s.position(ref); i >= 0 {
		s.Messages = slices.Insert(s.Messages, i+1, m)
	}
}

// Truncate removes ref and everything after it. No-op if ref is not present.
func (s *Session) Truncate(ref *Message) {
	if i := s.position(ref); i >= 0 {
		clear(s.Messages[i:])
		s.Messages = s.Messages[:i]
	}
}

// Find returns the message with the given id.
func (s *Session) Find(id string) (*Message, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Messages[i], true
	}
	return nil, false
}

// IndexOf returns the position of the message with the given id, or -1.
func (s *Session) IndexOf(id string) int {
	return slices.IndexFunc(s.Messages, func(m *Message) bool { return m.ID == id })
}

// Replace swaps the message with the given id for m, keeping its position.
// It reports whether the target was found.
func (s *Session) Replace(id string, m *Message) bool {
	i := s.IndexOf(id)
	if i < 0 {
		return false
	}
	s.Messages[i] = m
	return true
}

// Prefix returns a value copy of the history up to target. With inclusive
// set the target itself is the last element; otherwise the copy stops
// strictly before it. A missing target yields the whole history.
func (s *Session) Prefix(targetID string, inclusive bool) []Message {
	end := len(s.Messages)
	if i := s.IndexOf(targetID); i >= 0 {
		end = i
		if inclusive {
			end = i + 1
		}
	}
	out := make([]Message, end)
	for i, m := range s.Messages[:end] {
		out[i] = *m
	}
	return out
}

func (s *Session) position(m *Message) int {
	if m == nil {
		return -1
	}
	return slices.Index(s.Messages, m)
}

// Clone returns a deep copy, including the transient cost and loaded state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.Clone()
	}
	return &c
}

// Encode serializes the session standalone.
func (s *Session) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding chat: %w", err)
	}
	return data, nil
}

// Decode parses a standalone session. Decoded sessions carry their messages
// and are therefore loaded.
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding chat: %w", err)
	}
	s.Restore()
	return &s, nil
}

// Restore repairs a session decoded from an external document: null
// messages are dropped, settings normalized, and the session marked loaded.
func (s *Session) Restore() {
	s.Messages = slices.DeleteFunc(s.Messages, func(m *Message) bool { return m == nil })
	if s.Messages == nil {
		s.Messages = []*Message{}
	}
	s.Settings.Normalize()
	s.loaded = true
}
