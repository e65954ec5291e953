package state

import (
	"fmt"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/events"
)

// mutate applies fn to the active chat and publishes the change.
func (s *Store) mutate(fn func(c *chat.Session) error) error {
	s.mu.Lock()
	c := s.active
	if c.ID != "" && !c.Loaded() {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if err := fn(c); err != nil {
		s.mu.Unlock()
		return err
	}
	s.publishLocked(events.StateEventChatUpdated)
	s.mu.Unlock()
	s.persist.Schedule()
	return nil
}

func findMessage(c *chat.Session, id string) (*chat.Message, error) {
	m, ok := c.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	return m, nil
}

// AppendMessage adds a message to the end of the active chat.
func (s *Store) AppendMessage(role chat.Role, content string) (*chat.Message, error) {
	m := chat.NewMessage(role, content)
	err := s.mutate(func(c *chat.Session) error {
		c.Append(m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// EditMessage replaces a message's content and clears its error.
func (s *Store) EditMessage(id, content string) error {
	return s.mutate(func(c *chat.Session) error {
		m, err := findMessage(c, id)
		if err != nil {
			return err
		}
		edited := m.Clone()
		edited.Content = content
		edited.Error = ""
		c.Replace(id, edited)
		return nil
	})
}

// DeleteMessage removes one message.
func (s *Store) DeleteMessage(id string) error {
	return s.mutate(func(c *chat.Session) error {
		m, err := findMessage(c, id)
		if err != nil {
			return err
		}
		c.Delete(m)
		return nil
	})
}

// InsertMessage inserts a new message next to refID, before it when before
// is set. An empty refID inserts at the head. The new message starts in
// edit mode.
func (s *Store) InsertMessage(refID string, before bool, role chat.Role, content string) (*chat.Message, error) {
	m := chat.NewMessage(role, content)
	m.StartInEditMode = true
	err := s.mutate(func(c *chat.Session) error {
		var ref *chat.Message
		if refID != "" {
			var err error
			if ref, err = findMessage(c, refID); err != nil {
				return err
			}
		}
		if before {
			c.InsertBefore(ref, m)
		} else {
			c.InsertAfter(ref, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// TruncateFrom removes a message and everything after it.
func (s *Store) TruncateFrom(id string) error {
	return s.mutate(func(c *chat.Session) error {
		m, err := findMessage(c, id)
		if err != nil {
			return err
		}
		c.Truncate(m)
		return nil
	})
}

// UpdateSettings edits the active chat's settings. Out-of-range values are
// clamped.
func (s *Store) UpdateSettings(fn func(*chat.Settings)) error {
	return s.mutate(func(c *chat.Session) error {
		fn(&c.Settings)
		c.Settings.Normalize()
		return nil
	})
}

// Rename sets the active chat's explicit name. An empty name returns to the
// derived label.
func (s *Store) Rename(name string) error {
	return s.mutate(func(c *chat.Session) error {
		c.Name = name
		c.RefreshLabel()
		return nil
	})
}
