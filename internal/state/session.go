package state

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/debug"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/models"
	"github.com/guilhermegouw/parley/internal/pubsub"
	"github.com/guilhermegouw/parley/internal/remote"
)

// SwitchUser makes user current. The cleared state is published at once;
// the user record and chat list are then fetched and published when they
// arrive. A nil user logs out.
func (s *Store) SwitchUser(ctx context.Context, user *models.User, cred models.Credential) error {
	if user == nil {
		s.exchange.Cancel()
	}

	s.mu.Lock()
	s.userEpoch++
	ep := s.userEpoch
	s.user = user.Clone()
	s.cred = cred
	if user == nil {
		s.cred = ""
	}
	s.chats = nil
	s.adoptLocked()
	typ := events.StateEventUserSwitched
	if user == nil {
		typ = events.StateEventLoggedOut
	}
	s.publishLocked(typ)
	s.mu.Unlock()
	s.persist.ScheduleImmediate()

	if user == nil {
		return nil
	}
	return s.refresh(ctx, ep, user.Clone(), cred)
}

// adoptLocked rebinds the open chats to the current user. Chats owned by
// another user are closed; drafts follow the user.
func (s *Store) adoptLocked() {
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	if foreign(s.active, userID) {
		s.active = s.newDraft()
	} else if s.active.ID == "" {
		s.active.UserID = userID
	}
	if s.stash != nil {
		if foreign(s.stash, userID) {
			s.stash = nil
		} else if s.stash.ID == "" {
			s.stash.UserID = userID
		}
	}
}

func foreign(c *chat.Session, userID string) bool {
	return c.UserID != "" && c.UserID != userID
}

// refresh fetches the user record and chat list for epoch ep. Failures
// degrade to the known user and an empty list.
func (s *Store) refresh(ctx context.Context, ep uint64, user *models.User, cred models.Credential) error {
	var (
		fetched        *models.User
		list           []*chat.Session
		userErr, lsErr error
		g              errgroup.Group
	)
	g.Go(func() error {
		fetched, userErr = s.remote.GetUser(ctx, cred, user.ID)
		return userErr
	})
	g.Go(func() error {
		list, lsErr = s.remote.ListChats(ctx, cred, user.ID)
		return lsErr
	})
	_ = g.Wait() //nolint:errcheck // each result is handled below

	if errors.Is(userErr, remote.ErrUnauthorized) || errors.Is(lsErr, remote.ErrUnauthorized) {
		if s.forceLogoutIf(ep, remote.ErrUnauthorized) {
			return ErrSessionExpired
		}
		return nil
	}
	if userErr != nil {
		debug.Error("store", userErr, "fetching user")
	}
	if lsErr != nil {
		debug.Error("store", lsErr, "listing chats")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ep != s.userEpoch {
		debug.Event("store", "stale_fetch", fmt.Sprintf("epoch=%d current=%d", ep, s.userEpoch))
		return nil
	}
	if userErr == nil && fetched != nil {
		s.user = fetched
	}
	s.chats = s.mergeLocked(list)
	s.publishLocked(events.StateEventChatsListed)
	return nil
}

// mergeLocked combines a fetched list with the chats already open.
func (s *Store) mergeLocked(list []*chat.Session) []*chat.Session {
	out := make([]*chat.Session, 0, len(list)+1)
	found := false
	for _, c := range list {
		if c.ID == s.active.ID && s.active.ID != "" {
			out = append(out, s.active)
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found && s.active.IsSaved(s.user) {
		out = append([]*chat.Session{s.active}, out...)
	}
	return out
}

// Login authenticates and switches to the user. A failed login leaves the
// state untouched.
func (s *Store) Login(ctx context.Context, name, password string) error {
	res, err := s.auth.Login(ctx, name, password)
	if err != nil {
		s.hub.Auth.Publish(pubsub.EventFailed, events.NewLoginFailedEvent(name, err))
		return err
	}
	s.hub.Auth.Publish(pubsub.EventCompleted, events.NewAuthEvent(events.AuthEventLoggedIn, res.User.ID, res.User.Name))
	return s.SwitchUser(ctx, res.User, res.Credential)
}

// Logout clears the user and credential.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	user := s.user.Clone()
	s.mu.Unlock()

	if err := s.SwitchUser(ctx, nil, ""); err != nil {
		return err
	}
	if user != nil {
		s.hub.Auth.Publish(pubsub.EventCompleted, events.NewAuthEvent(events.AuthEventLoggedOut, user.ID, user.Name))
	}
	return nil
}

// CreateAccount registers a user and logs in as them.
func (s *Store) CreateAccount(ctx context.Context, name, password, apiKey string) error {
	res, err := s.auth.Create(ctx, name, password, apiKey)
	if err != nil {
		return err
	}
	s.hub.Auth.Publish(pubsub.EventCreated, events.NewAuthEvent(events.AuthEventAccountCreated, res.User.ID, res.User.Name))
	return s.SwitchUser(ctx, res.User, res.Credential)
}

// AccountChange edits the current account. Empty fields keep their value.
type AccountChange struct {
	Name     string
	Password string
	APIKey   *string
}

// EditAccount updates the current user's name, password or default API key.
func (s *Store) EditAccount(ctx context.Context, change AccountChange) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotLoggedIn
	}
	ep := s.userEpoch
	user := s.user.Clone()
	cred := s.cred
	s.mu.Unlock()

	if change.Name != "" {
		user.Name = change.Name
	}
	if change.APIKey != nil {
		user.APIKey = *change.APIKey
	}

	res, err := s.auth.Edit(ctx, cred, user, change.Password)
	if errors.Is(err, remote.ErrUnauthorized) {
		s.forceLogoutIf(ep, err)
		return ErrSessionExpired
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if ep == s.userEpoch {
		s.user = res.User.Clone()
		s.cred = res.Credential
		s.publishLocked(events.StateEventUserSwitched)
	}
	s.mu.Unlock()
	s.persist.ScheduleImmediate()
	s.hub.Auth.Publish(pubsub.EventUpdated, events.NewAuthEvent(events.AuthEventAccountEdited, res.User.ID, res.User.Name))
	return nil
}

// forceLogout drops the user and credential after the store rejected them.
func (s *Store) forceLogout(reason error) {
	s.mu.Lock()
	ep := s.userEpoch
	s.mu.Unlock()
	s.forceLogoutIf(ep, reason)
}

// forceLogoutIf logs out unless the user changed since epoch ep. It
// reports whether it did.
func (s *Store) forceLogoutIf(ep uint64, reason error) bool {
	s.mu.Lock()
	if ep != s.userEpoch || s.user == nil {
		s.mu.Unlock()
		return false
	}
	userID := s.user.ID
	s.userEpoch++
	s.user = nil
	s.cred = ""
	s.chats = nil
	s.adoptLocked()
	s.publishLocked(events.StateEventForcedLogout)
	s.mu.Unlock()

	debug.Error("store", reason, "forced logout")
	s.hub.Auth.Publish(pubsub.EventFailed, events.NewForcedLogoutEvent(userID, reason))
	s.persist.ScheduleImmediate()
	return true
}
