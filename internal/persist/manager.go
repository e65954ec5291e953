package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/debug"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/models"
	"github.com/guilhermegouw/parley/internal/pubsub"
)

// Default debounce windows.
const (
	DefaultDebounce  = time.Second
	DefaultImmediate = 10 * time.Millisecond
)

// FlushState is what one flush writes. Local is the chat for the local
// snapshot; Remote is set only when the active chat is saved.
type FlushState struct { //nolint:govet // fieldalignment: preserving logical field order
	User       *models.User
	Credential models.Credential
	Local      *chat.Session
	Remote     *chat.Session
}

// Source supplies a consistent copy of the state to persist. It is called
// without any Manager lock held.
type Source interface {
	PersistState() FlushState
}

// RemoteStore mirrors saved chats.
type RemoteStore interface {
	UpsertChat(ctx context.Context, cred models.Credential, c *chat.Session) error
}

// Options configures a Manager. Zero durations select the defaults.
type Options struct {
	Debounce  time.Duration
	Immediate time.Duration
	// Events receives one event per flush. It may be nil.
	Events pubsub.Publisher[events.PersistEvent]
	// OnError receives every flush failure.
	OnError func(error)
}

// Manager debounces writes of the application state.
type Manager struct { //nolint:govet // fieldalignment: preserving logical field order
	local  LocalStore
	remote RemoteStore
	source Source
	opts   Options

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	closed  bool

	flushMu sync.Mutex
}

// NewManager creates a manager. remote may be nil for local-only use.
func NewManager(local LocalStore, remote RemoteStore, source Source, opts Options) *Manager {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Immediate <= 0 {
		opts.Immediate = DefaultImmediate
	}
	return &Manager{
		local:  local,
		remote: remote,
		source: source,
		opts:   opts,
	}
}

// Schedule requests a flush after the debounce window, replacing any
// pending one.
func (m *Manager) Schedule() {
	m.schedule(m.opts.Debounce)
}

// ScheduleImmediate requests a flush after the short window, replacing any
// pending one.
func (m *Manager) ScheduleImmediate() {
	m.schedule(m.opts.Immediate)
}

func (m *Manager) schedule(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.pending = true
	m.timer = time.AfterFunc(d, func() { m.fire(gen) })
}

func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.pending {
		m.mu.Unlock()
		return
	}
	m.pending = false
	m.timer = nil
	m.mu.Unlock()

	_ = m.Flush(context.Background()) //nolint:errcheck // reported through OnError
}

// Flush writes the local snapshot and, for a saved chat, the remote copy.
// A local failure does not prevent the remote write.
func (m *Manager) Flush(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	st := m.source.PersistState()

	var errs []error
	snap := Snapshot{User: st.User, Credential: st.Credential, Chat: st.Local}
	data, err := snap.Encode()
	if err == nil {
		err = m.local.Put(ctx, CurrentVersion, data)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("writing local snapshot: %w", err))
	}

	remote := st.Remote != nil && m.remote != nil
	if remote {
		st.Remote.RefreshLabel()
		if err := m.remote.UpsertChat(ctx, st.Credential, st.Remote); err != nil {
			errs = append(errs, fmt.Errorf("saving chat %s: %w", st.Remote.ID, err))
		}
	}

	err = errors.Join(errs...)
	chatID := ""
	if st.Local != nil {
		chatID = st.Local.ID
	}
	if st.Remote != nil {
		chatID = st.Remote.ID
	}
	if err != nil {
		debug.Error("persist", err, "flush")
	} else {
		debug.Event("persist", "flushed", fmt.Sprintf("chat=%q remote=%v", chatID, remote))
	}
	if m.opts.Events != nil {
		m.opts.Events.Publish(pubsub.EventCompleted, events.NewPersistEvent(chatID, remote, err))
	}
	if err != nil && m.opts.OnError != nil {
		m.opts.OnError(err)
	}
	return err
}

// Close cancels the debounce timer and flushes if a write was pending.
// Later schedules are ignored.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	pending := m.pending
	m.pending = false
	m.gen++
	m.mu.Unlock()

	if !pending {
		return nil
	}
	return m.Flush(ctx)
}

// Load reads and migrates the stored snapshot. ErrNoSnapshot means first
// run.
func (m *Manager) Load(ctx context.Context) (*Snapshot, error) {
	data, err := m.local.Get(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snap, nil
}
