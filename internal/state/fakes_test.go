package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/guilhermegouw/parley/internal/auth"
	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/exchange"
	"github.com/guilhermegouw/parley/internal/models"
	"github.com/guilhermegouw/parley/internal/persist"
	"github.com/guilhermegouw/parley/internal/pubsub"
	"github.com/guilhermegouw/parley/internal/remote"
)

type fakeRemote struct {
	mu       sync.Mutex
	chats    map[string]*chat.Session
	users    map[string]*models.User
	listErr  error
	getErr   error
	userErr  error
	upsert   error
	upserts  []string
	deletes  []string
	getCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		chats: make(map[string]*chat.Session),
		users: make(map[string]*models.User),
	}
}

func (f *fakeRemote) addChat(c *chat.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[c.ID] = c.Clone()
}

func (f *fakeRemote) ListChats(_ context.Context, _ models.Credential, userID string) ([]*chat.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*chat.Session
	for _, c := range f.chats {
		if c.UserID == userID {
			summary := &chat.Session{ID: c.ID, UserID: c.UserID, Name: c.Name, TemporaryName: c.TemporaryName}
			out = append(out, summary)
		}
	}
	return out, nil
}

func (f *fakeRemote) GetChat(_ context.Context, _ models.Credential, id string) (*chat.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.chats[id]
	if !ok {
		return nil, &remote.StatusError{Status: 404}
	}
	out := c.Clone()
	out.Restore()
	return out, nil
}

func (f *fakeRemote) UpsertChat(_ context.Context, _ models.Credential, c *chat.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsert != nil {
		return f.upsert
	}
	f.chats[c.ID] = c.Clone()
	f.upserts = append(f.upserts, c.ID)
	return nil
}

func (f *fakeRemote) DeleteChat(_ context.Context, _ models.Credential, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chats, id)
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeRemote) GetUser(_ context.Context, _ models.Credential, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, &remote.StatusError{Status: 404}
	}
	return u.Clone(), nil
}

type fakeAuth struct {
	passwords map[string]string
}

func (f *fakeAuth) Login(_ context.Context, name, password string) (*auth.Result, error) {
	if pw, ok := f.passwords[name]; !ok || pw != password {
		return nil, fmt.Errorf("finishing login: %w", auth.ErrBadCredentials)
	}
	return &auth.Result{User: &models.User{ID: "id-" + name, Name: name}, Credential: models.Credential("tok-" + name)}, nil
}

func (f *fakeAuth) Create(_ context.Context, name, password, apiKey string) (*auth.Result, error) {
	f.passwords[name] = password
	return &auth.Result{User: &models.User{ID: "id-" + name, Name: name, APIKey: apiKey}, Credential: models.Credential("tok-" + name)}, nil
}

func (f *fakeAuth) Edit(_ context.Context, cred models.Credential, user *models.User, _ string) (*auth.Result, error) {
	if cred == "expired" {
		return nil, remote.ErrUnauthorized
	}
	return &auth.Result{User: user.Clone(), Credential: cred}, nil
}

// fakeExchange runs exchanges synchronously under test control.
type fakeExchange struct {
	mu      sync.Mutex
	epoch   uint64
	reqs    []*exchange.Request
	handler exchange.Handler
}

func (f *fakeExchange) Start(_ context.Context, req *exchange.Request, h exchange.Handler) uint64 {
	f.Cancel()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
	f.reqs = append(f.reqs, req)
	f.handler = h
	return f.epoch
}

func (f *fakeExchange) Cancel() {
	f.finish(exchange.Outcome{Cancelled: true})
}

func (f *fakeExchange) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

func (f *fakeExchange) update(m *chat.Message) error {
	f.mu.Lock()
	h, epoch := f.handler, f.epoch
	f.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.OnUpdate(epoch, m)
}

func (f *fakeExchange) finish(o exchange.Outcome) {
	f.mu.Lock()
	h := f.handler
	f.handler = nil
	o.Epoch = f.epoch
	f.mu.Unlock()
	if h != nil {
		h.OnTerminate(o)
	}
}

func (f *fakeExchange) lastRequest() *exchange.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return nil
	}
	return f.reqs[len(f.reqs)-1]
}

type harness struct {
	store  *Store
	remote *fakeRemote
	auth   *fakeAuth
	ex     *fakeExchange
	local  *persist.MemoryStore
	hub    *pubsub.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		remote: newFakeRemote(),
		auth:   &fakeAuth{passwords: map[string]string{"alice": "pw"}},
		ex:     &fakeExchange{},
		local:  persist.NewMemoryStore(),
		hub:    pubsub.NewHub(),
	}
	h.remote.users["id-alice"] = &models.User{ID: "id-alice", Name: "alice", APIKey: "alice-key"}
	h.store = New(Options{
		Remote:    h.remote,
		Auth:      h.auth,
		Exchange:  h.ex,
		Local:     h.local,
		Hub:       h.hub,
		Debounce:  time.Hour,
		Immediate: time.Hour,
	})
	t.Cleanup(func() {
		h.hub.Shutdown()
	})
	return h
}

// reopen closes the store and starts another over the same local and
// remote state, as the next run of the program would.
func (h *harness) reopen(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := h.store.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	h.ex = &fakeExchange{}
	h.store = New(Options{
		Remote:    h.remote,
		Auth:      h.auth,
		Exchange:  h.ex,
		Local:     h.local,
		Hub:       h.hub,
		Debounce:  time.Hour,
		Immediate: time.Hour,
	})
	if err := h.store.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	if err := h.store.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

// savedChat registers a chat for alice on the remote store.
func (h *harness) savedChat(id string, contents ...string) *chat.Session {
	c := chat.NewDraft("id-alice", chat.DefaultSettings())
	c.ID = id
	for _, text := range contents {
		c.Append(chat.NewMessage(chat.RoleUser, text))
	}
	c.RefreshLabel()
	h.remote.addChat(c)
	return c
}

func contents(c *chat.Session) []string {
	out := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		out[i] = m.Content
	}
	return out
}

func entryIDs(v events.StateEvent) map[string]events.ChatEntry {
	out := make(map[string]events.ChatEntry, len(v.Chats))
	for _, e := range v.Chats {
		out[e.ID] = e
	}
	return out
}
