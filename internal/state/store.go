// Package state is the session state store: the single owner of the current
// user, credential, chat list and active chat. Every mutation goes through
// it and every visible change is published on the hub's state broker.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guilhermegouw/parley/internal/auth"
	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/debug"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/exchange"
	"github.com/guilhermegouw/parley/internal/models"
	"github.com/guilhermegouw/parley/internal/persist"
	"github.com/guilhermegouw/parley/internal/pubsub"
	"github.com/guilhermegouw/parley/internal/remote"
)

// Store errors.
var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired, log in again")
	ErrNotSaved       = errors.New("current chat is not saved")
	ErrNotLoaded      = errors.New("current chat is still loading")
	ErrUnknownChat    = errors.New("chat not found")
	ErrUnknownMessage = errors.New("message not found")
)

// Remote is the chat and user store.
type Remote interface {
	ListChats(ctx context.Context, cred models.Credential, userID string) ([]*chat.Session, error)
	GetChat(ctx context.Context, cred models.Credential, id string) (*chat.Session, error)
	UpsertChat(ctx context.Context, cred models.Credential, c *chat.Session) error
	DeleteChat(ctx context.Context, cred models.Credential, id string) error
	GetUser(ctx context.Context, cred models.Credential, id string) (*models.User, error)
}

// Authenticator runs login and account flows.
type Authenticator interface {
	Login(ctx context.Context, name, password string) (*auth.Result, error)
	Create(ctx context.Context, name, password, apiKey string) (*auth.Result, error)
	Edit(ctx context.Context, cred models.Credential, user *models.User, password string) (*auth.Result, error)
}

// Exchanger runs streaming exchanges, one at a time.
type Exchanger interface {
	Start(ctx context.Context, req *exchange.Request, h exchange.Handler) uint64
	Cancel()
	Busy() bool
}

// Options wires a Store to its collaborators.
type Options struct { //nolint:govet // fieldalignment: preserving logical field order
	Remote   Remote
	Auth     Authenticator
	Exchange Exchanger
	Local    persist.LocalStore
	Hub      *pubsub.Hub

	Debounce  time.Duration
	Immediate time.Duration
	// Defaults seeds the settings of new chats.
	Defaults chat.Settings
}

// Store coordinates the chat model, exchanges and persistence.
type Store struct { //nolint:govet // fieldalignment: preserving logical field order
	remote   Remote
	auth     Authenticator
	exchange Exchanger
	hub      *pubsub.Hub
	persist  *persist.Manager
	defaults chat.Settings

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	user      *models.User
	cred      models.Credential
	chats     []*chat.Session
	active    *chat.Session
	stash     *chat.Session
	userEpoch uint64
}

// New creates a store with an empty draft open. Call Load to restore the
// previous session.
func New(opts Options) *Store {
	defaults := opts.Defaults
	if defaults == (chat.Settings{}) {
		defaults = chat.DefaultSettings()
	}
	defaults.Normalize()

	hub := opts.Hub
	if hub == nil {
		hub = pubsub.NewHub()
	}
	local := opts.Local
	if local == nil {
		local = persist.NewMemoryStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		remote:   opts.Remote,
		auth:     opts.Auth,
		exchange: opts.Exchange,
		hub:      hub,
		defaults: defaults,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.active = s.newDraft()
	s.persist = persist.NewManager(local, opts.Remote, s, persist.Options{
		Debounce:  opts.Debounce,
		Immediate: opts.Immediate,
		Events:    hub.Persist,
		OnError:   s.onPersistError,
	})
	return s
}

// Hub returns the hub the store publishes on.
func (s *Store) Hub() *pubsub.Hub {
	return s.hub
}

// Load restores the last snapshot and refreshes the chat list. A missing or
// unreadable snapshot leaves the default empty state.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.persist.Load(ctx)
	switch {
	case errors.Is(err, persist.ErrNoSnapshot):
		debug.Event("store", "load", "no snapshot, starting fresh")
		snap = &persist.Snapshot{}
	case err != nil:
		debug.Error("store", err, "loading snapshot, starting fresh")
		snap = &persist.Snapshot{}
	}

	s.mu.Lock()
	s.userEpoch++
	s.user = snap.User.Clone()
	s.cred = snap.Credential
	if s.user == nil {
		s.cred = ""
	}
	s.chats = nil
	s.stash = nil
	if snap.Chat != nil {
		s.active = snap.Chat
		if s.active.IsSaved(s.user) {
			s.chats = []*chat.Session{s.active}
		}
	} else {
		s.active = s.newDraft()
	}
	ep := s.userEpoch
	user, cred := s.user.Clone(), s.cred
	s.publishLocked(events.StateEventLoaded)
	s.mu.Unlock()

	if user == nil {
		return nil
	}
	return s.refresh(ctx, ep, user, cred)
}

// View returns the current published state.
func (s *Store) View() events.StateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of state publications.
func (s *Store) Subscribe(ctx context.Context) <-chan pubsub.Event[events.StateEvent] {
	return s.hub.State.Subscribe(ctx)
}

// Flush writes the state now instead of waiting for the debounce.
func (s *Store) Flush(ctx context.Context) error {
	return s.persist.Flush(ctx)
}

// Close aborts any exchange and writes pending state.
func (s *Store) Close(ctx context.Context) error {
	s.exchange.Cancel()
	s.cancel()
	if err := s.persist.Close(ctx); err != nil {
		return fmt.Errorf("flushing state: %w", err)
	}
	return nil
}

// PersistState implements persist.Source. The local snapshot holds the
// one draft worth keeping: the active chat unless it is saved or empty and
// a stashed draft exists.
func (s *Store) PersistState() persist.FlushState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := persist.FlushState{User: s.user.Clone(), Credential: s.cred}
	saved := s.active.IsSaved(s.user)
	if s.stash != nil && (saved || s.active.IsEmpty()) {
		st.Local = s.stash.Clone()
	} else {
		st.Local = s.active.Clone()
	}
	if saved {
		st.Remote = s.active.Clone()
	}
	return st
}

// Focus records what is open beyond the local snapshot, which only keeps
// a draft.
type Focus struct {
	// ChatID is the open saved chat.
	ChatID string `json:"chat_id,omitempty"`
	// Fresh means an empty draft is open with the snapshot draft stashed.
	Fresh bool `json:"fresh,omitempty"`
}

// IsZero reports whether the snapshot alone restores the open chat.
func (f Focus) IsZero() bool {
	return f == Focus{}
}

// Focus returns what Restore needs to reopen the current chat after Load.
func (s *Store) Focus() Focus {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.user != nil && s.active.ID != "" && s.active.UserID == s.user.ID:
		return Focus{ChatID: s.active.ID}
	case s.stash != nil && s.active.IsEmpty() && s.active.ID == "":
		return Focus{Fresh: true}
	}
	return Focus{}
}

// Restore reopens what f names on top of a loaded snapshot. A chat that is
// no longer listed is ignored.
func (s *Store) Restore(ctx context.Context, f Focus) error {
	switch {
	case f.ChatID != "":
		s.mu.Lock()
		target, _ := s.findChatLocked(f.ChatID)
		s.mu.Unlock()
		if target == nil {
			debug.Event("store", "restore", "chat "+f.ChatID+" is no longer listed")
			return nil
		}
		return s.OpenChat(ctx, f.ChatID)
	case f.Fresh:
		s.mu.Lock()
		fresh := s.active.IsEmpty()
		s.mu.Unlock()
		if !fresh {
			s.NewChat()
		}
	}
	return nil
}

func (s *Store) onPersistError(err error) {
	if errors.Is(err, remote.ErrUnauthorized) {
		s.forceLogout(err)
	}
}

func (s *Store) newDraft() *chat.Session {
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	return chat.NewDraft(userID, s.defaults)
}

func (s *Store) snapshotLocked() events.StateEvent {
	entries := make([]events.ChatEntry, 0, len(s.chats))
	for _, c := range s.chats {
		entries = append(entries, events.ChatEntry{
			ID:     c.ID,
			Label:  c.Label(),
			Loaded: c.Loaded(),
			Active: c == s.active,
		})
	}
	return events.StateEvent{
		User:       s.user.Clone(),
		LoggedIn:   s.user != nil && !s.cred.Empty(),
		Chats:      entries,
		Active:     s.active.Clone(),
		ActiveSave: s.active.IsSaved(s.user),
		HasStash:   s.stash != nil,
		Busy:       s.exchange.Busy(),
	}
}

func (s *Store) publishLocked(typ events.StateEventType) {
	debug.Event("store", string(typ), fmt.Sprintf("chat=%q chats=%d", s.active.ID, len(s.chats)))
	s.hub.State.Publish(pubsub.EventUpdated, events.NewStateEvent(typ, s.snapshotLocked()))
}

// stashLocked keeps the active chat aside when it is an unsaved draft worth
// keeping.
func (s *Store) stashLocked() {
	if s.active.IsSaved(s.user) || s.active.IsEmpty() {
		return
	}
	s.stash = s.active
}

// findChatLocked returns the listed chat with id.
func (s *Store) findChatLocked(id string) (*chat.Session, int) {
	for i, c := range s.chats {
		if c.ID == id {
			return c, i
		}
	}
	return nil, -1
}
