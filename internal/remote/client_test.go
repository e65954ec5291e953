package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestListChats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/users/u1/chats" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = io.WriteString(w, `[{"id":"c1","name":"One","messages":[]},null,{"id":"c2","messages":[]}]`)
	})

	list, err := c.ListChats(context.Background(), "tok", "u1")
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	for _, s := range list {
		if s.Loaded() {
			t.Errorf("listed chat %s should not be loaded", s.ID)
		}
	}
}

func TestGetChat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/c1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id":"c1","user_id":"u1","messages":[{"id":"m1","role":"user","message":"hi"}],"settings":{"determinism":50,"max_tokens":10,"model":"gpt-4"}}`)
	})

	s, err := c.GetChat(context.Background(), "tok", "c1")
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if !s.Loaded() || len(s.Messages) != 1 || s.Messages[0].Content != "hi" {
		t.Errorf("chat = %+v", s)
	}
}

func TestCallsBoundedByContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.GetChat(ctx, "tok", "c1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetChat() error = %v, want deadline exceeded", err)
	}
}

func TestUpsertAndDeleteChat(t *testing.T) {
	var methods []string
	var body chat.Session
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding body: %v", err)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	s := chat.NewDraft("u1", chat.DefaultSettings())
	s.ID = "c9"
	s.Append(chat.NewMessage(chat.RoleUser, "saved text"))

	ctx := context.Background()
	if err := c.UpsertChat(ctx, "tok", s); err != nil {
		t.Fatalf("UpsertChat() error = %v", err)
	}
	if err := c.DeleteChat(ctx, "tok", "c9"); err != nil {
		t.Fatalf("DeleteChat() error = %v", err)
	}

	want := []string{"PUT /api/chats/c9", "DELETE /api/chats/c9"}
	if len(methods) != 2 || methods[0] != want[0] || methods[1] != want[1] {
		t.Errorf("requests = %v, want %v", methods, want)
	}
	if body.UserID != "u1" || len(body.Messages) != 1 || body.Messages[0].Content != "saved text" {
		t.Errorf("upserted body = %+v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"expired"}`, ErrUnauthorized, ""},
		{"server error field", http.StatusBadRequest, `{"error":"name taken"}`, nil, "name taken"},
		{"plain text", http.StatusInternalServerError, "boom", nil, "boom"},
		{"empty body", http.StatusNotFound, "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.GetUser(context.Background(), "tok", "u1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StatusError", err)
			}
			if se.Status != tt.status || se.Message != tt.wantMsg {
				t.Errorf("StatusError = %+v", se)
			}
			if errors.Is(err, ErrUnauthorized) {
				t.Error("non-401 must not be unauthorized")
			}
		})
	}
}

func TestLoginEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a credential")
		}
		switch r.URL.Path {
		case "/api/login/start":
			var req LoginStartRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(LoginStartResponse{Salt: "aa", ServerPublic: "bb", Name: req.Name})
		case "/api/login/finish":
			var req LoginFinishRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.ClientProof != "cc" || req.ServerPublic != "bb" {
				t.Errorf("finish request = %+v", req)
			}
			_ = json.NewEncoder(w).Encode(LoginFinishResponse{
				ServerProof: "dd",
				User:        &models.User{ID: "u1", Name: req.Name},
				Session:     "tok",
			})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	start, err := c.LoginStart(ctx, LoginStartRequest{Name: "alice"})
	if err != nil {
		t.Fatalf("LoginStart() error = %v", err)
	}
	if start.Salt != "aa" || start.Name != "alice" {
		t.Errorf("start = %+v", start)
	}
	finish, err := c.LoginFinish(ctx, LoginFinishRequest{Name: "alice", ServerPublic: "bb", ClientPublic: "ee", ClientProof: "cc"})
	if err != nil {
		t.Fatalf("LoginFinish() error = %v", err)
	}
	if finish.Session != "tok" || finish.User.ID != "u1" {
		t.Errorf("finish = %+v", finish)
	}
}

func TestAccountEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req AccountRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/users":
			if req.Password != "pw" {
				t.Errorf("create password = %q", req.Password)
			}
			_ = json.NewEncoder(w).Encode(AccountResponse{User: &models.User{ID: "u1", Name: req.Name, APIKey: req.APIKey}, Session: "s1"})
		case r.Method == http.MethodPut && r.URL.Path == "/api/users/u1":
			if r.Header.Get("Authorization") != "Bearer s1" {
				t.Error("edit must send the credential")
			}
			_ = json.NewEncoder(w).Encode(AccountResponse{User: &models.User{ID: "u1", Name: req.Name}, Session: "s2"})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	created, err := c.CreateUser(ctx, AccountRequest{Name: "alice", Password: "pw", APIKey: "k"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if created.User.APIKey != "k" || created.Session != "s1" {
		t.Errorf("created = %+v", created)
	}
	edited, err := c.EditUser(ctx, created.Session, "u1", AccountRequest{Name: "alicia"})
	if err != nil {
		t.Fatalf("EditUser() error = %v", err)
	}
	if edited.User.Name != "alicia" || edited.Session != "s2" {
		t.Errorf("edited = %+v", edited)
	}
}
