package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/debug"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/remote"
)

// NewChat opens an empty draft, stashing the current draft if it has
// messages.
func (s *Store) NewChat() {
	s.mu.Lock()
	s.stashLocked()
	s.active = s.newDraft()
	s.publishLocked(events.StateEventChatOpened)
	s.mu.Unlock()
	s.persist.Schedule()
}

// SaveDraft promotes the active draft to a saved chat owned by the current
// user. Only drafts and imported chats qualify: it returns false when there
// is no user, or the active chat is saved or still waiting to load.
func (s *Store) SaveDraft() bool {
	s.mu.Lock()
	if s.user == nil || !s.promotableLocked() {
		s.mu.Unlock()
		return false
	}
	s.active.ID = uuid.NewString()
	s.active.UserID = s.user.ID
	s.active.SetLoaded(true)
	s.active.RefreshLabel()
	if s.stash == s.active {
		s.stash = nil
	}
	s.chats = append([]*chat.Session{s.active}, s.chats...)
	s.publishLocked(events.StateEventChatSaved)
	s.mu.Unlock()
	s.persist.ScheduleImmediate()
	return true
}

// promotableLocked reports whether the active chat is a draft or an
// imported chat. Listed chats keep their id even before they load.
func (s *Store) promotableLocked() bool {
	c := s.active
	if c.ID != "" && !c.Loaded() {
		return false
	}
	if c.ID != "" && c.UserID != "" {
		return false
	}
	return !c.IsSaved(s.user)
}

// OpenChat makes the listed chat id active, fetching it first if it was
// never loaded. An empty id reopens the stashed draft, or a fresh one.
// A failed fetch leaves the chat unloaded.
func (s *Store) OpenChat(ctx context.Context, id string) error {
	s.mu.Lock()
	if id == "" {
		prev := s.stash
		s.stash = nil
		s.stashLocked()
		if prev != nil {
			s.active = prev
		} else {
			s.active = s.newDraft()
		}
		s.publishLocked(events.StateEventChatOpened)
		s.mu.Unlock()
		s.persist.Schedule()
		return nil
	}

	target, _ := s.findChatLocked(id)
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownChat, id)
	}
	if target != s.active {
		s.stashLocked()
		s.active = target
	}
	s.publishLocked(events.StateEventChatOpened)
	if target.Loaded() {
		s.mu.Unlock()
		s.persist.Schedule()
		return nil
	}
	ep := s.userEpoch
	cred := s.cred
	s.mu.Unlock()

	fetched, err := s.remote.GetChat(ctx, cred, id)
	if errors.Is(err, remote.ErrUnauthorized) {
		if s.forceLogoutIf(ep, err) {
			return ErrSessionExpired
		}
		return err
	}
	if err != nil {
		debug.Error("store", err, "loading chat "+id)
		return fmt.Errorf("loading chat: %w", err)
	}

	s.mu.Lock()
	defer s.persist.Schedule()
	defer s.mu.Unlock()
	if ep != s.userEpoch {
		return nil
	}
	current, i := s.findChatLocked(id)
	if current != target {
		// Replaced or removed while the fetch was in flight.
		return nil
	}
	fetched.SetLoaded(true)
	s.chats[i] = fetched
	if s.active == target {
		s.active = fetched
	}
	s.publishLocked(events.StateEventChatLoaded)
	return nil
}

// DeleteCurrent deletes the active saved chat locally and remotely, then
// reopens the stash or a fresh draft.
func (s *Store) DeleteCurrent(ctx context.Context) error {
	s.mu.Lock()
	if !s.active.IsSaved(s.user) {
		s.mu.Unlock()
		return ErrNotSaved
	}
	s.mu.Unlock()

	// The exchange may be writing into the chat being deleted.
	s.exchange.Cancel()

	s.mu.Lock()
	if !s.active.IsSaved(s.user) {
		s.mu.Unlock()
		return ErrNotSaved
	}
	deleted := s.active
	ep := s.userEpoch
	cred := s.cred
	if _, i := s.findChatLocked(deleted.ID); i >= 0 {
		s.chats = append(s.chats[:i], s.chats[i+1:]...)
	}
	if s.stash != nil && s.stash.ID == deleted.ID {
		s.stash = nil
	}
	if s.stash != nil {
		s.active = s.stash
		s.stash = nil
	} else {
		s.active = s.newDraft()
	}
	s.publishLocked(events.StateEventChatDeleted)
	s.mu.Unlock()
	s.persist.ScheduleImmediate()

	err := s.remote.DeleteChat(ctx, cred, deleted.ID)
	if errors.Is(err, remote.ErrUnauthorized) {
		if s.forceLogoutIf(ep, err) {
			return ErrSessionExpired
		}
		return err
	}
	if err != nil {
		debug.Error("store", err, "deleting chat "+deleted.ID)
		return err
	}
	return nil
}

// Export serializes the active chat.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Encode()
}

// Import opens an exported chat as a new unsaved chat with a fresh id.
func (s *Store) Import(data []byte) error {
	c, err := chat.Decode(data)
	if err != nil {
		return fmt.Errorf("importing chat: %w", err)
	}
	c.ID = uuid.NewString()
	c.UserID = ""

	s.mu.Lock()
	s.stashLocked()
	s.active = c
	s.publishLocked(events.StateEventChatOpened)
	s.mu.Unlock()
	s.persist.Schedule()
	return nil
}
