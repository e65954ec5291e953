package chat

import (
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/guilhermegouw/parley/internal/models"
)

func newTestSession(contents ...string) *Session {
	s := NewDraft("", DefaultSettings())
	for _, c := range contents {
		s.Append(NewMessage(RoleUser, c))
	}
	return s
}

func ids(msgs []*Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestSessionDelete(t *testing.T) {
	t.Run("removes message by identity", func(t *testing.T) {
		s := newTestSession("a", "b", "c")
		b := s.Messages[1]

		s.Delete(b)

		if len(s.Messages) != 2 {
			t.Fatalf("len = %d, want 2", len(s.Messages))
		}
		if s.Messages[0].Content != "a" || s.Messages[1].Content != "c" {
			t.Errorf("unexpected order: %v", ids(s.Messages))
		}
	})

	t.Run("equal copy is not the same message", func(t *testing.T) {
		s := newTestSession("a", "b")
		copyOfB := s.Messages[1].Clone()

		s.Delete(copyOfB)

		if len(s.Messages) != 2 {
			t.Errorf("len = %d, want 2 (copy must not match)", len(s.Messages))
		}
	})

	t.Run("absent message is a no-op", func(t *testing.T) {
		s := newTestSession("a")
		s.Delete(NewMessage(RoleUser, "x"))
		s.Delete(nil)

		if len(s.Messages) != 1 {
			t.Errorf("len = %d, want 1", len(s.Messages))
		}
	})
}

func TestSessionInsert(t *testing.T) {
	t.Run("before reference", func(t *testing.T) {
		s := newTestSession("a", "c")
		b := NewMessage(RoleUser, "b")
		s.InsertBefore(s.Messages[1], b)

		if got := s.Messages[1]; got != b {
			t.Errorf("Messages[1] = %q, want b", got.Content)
		}
	})

	t.Run("after reference", func(t *testing.T) {
		s := newTestSession("a", "c")
		b := NewMessage(RoleUser, "b")
		s.InsertAfter(s.Messages[0], b)

		if got := s.Messages[1]; got != b {
			t.Errorf("Messages[1] = %q, want b", got.Content)
		}
	})

	t.Run("after last appends", func(t *testing.T) {
		s := newTestSession("a", "b")
		c := NewMessage(RoleUser, "c")
		s.InsertAfter(s.Messages[1], c)

		if s.Messages[2] != c {
			t.Errorf("expected c at the tail, got %v", ids(s.Messages))
		}
	})

	t.Run("nil reference inserts at head", func(t *testing.T) {
		s := newTestSession("b")
		a := NewMessage(RoleUser, "a")
		s.InsertBefore(nil, a)
		z := NewMessage(RoleUser, "z")
		s.InsertAfter(nil, z)

		if s.Messages[0] != z || s.Messages[1] != a {
			t.Errorf("unexpected head: %v", ids(s.Messages))
		}
	})

	t.Run("absent reference is a no-op", func(t *testing.T) {
		s := newTestSession("a")
		s.InsertBefore(NewMessage(RoleUser, "ghost"), NewMessage(RoleUser, "x"))
		s.InsertAfter(NewMessage(RoleUser, "ghost"), NewMessage(RoleUser, "y"))

		if len(s.Messages) != 1 {
			t.Errorf("len = %d, want 1", len(s.Messages))
		}
	})
}

func TestSessionTruncate(t *testing.T) {
	t.Run("removes reference and everything after", func(t *testing.T) {
		s := newTestSession("a", "b", "c", "d")
		s.Truncate(s.Messages[1])

		if len(s.Messages) != 1 || s.Messages[0].Content != "a" {
			t.Errorf("unexpected messages: %v", ids(s.Messages))
		}
	})

	t.Run("truncate at head empties", func(t *testing.T) {
		s := newTestSession("a", "b")
		s.Truncate(s.Messages[0])

		if !s.IsEmpty() {
			t.Errorf("len = %d, want 0", len(s.Messages))
		}
	})

	t.Run("absent reference is a no-op", func(t *testing.T) {
		s := newTestSession("a", "b")
		s.Truncate(NewMessage(RoleUser, "ghost"))

		if len(s.Messages) != 2 {
			t.Errorf("len = %d, want 2", len(s.Messages))
		}
	})
}

// TestSessionOperationsPreserveUntouchedOrder runs random sequences of
// structural edits and checks that untouched messages keep their identity
// and relative order.
func TestSessionOperationsPreserveUntouchedOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic test input

	for round := 0; round < 200; round++ {
		s := newTestSession("m0", "m1", "m2", "m3", "m4")
		for step := 0; step < 20; step++ {
			before := slices.Clone(s.Messages)
			var ref *Message
			if len(s.Messages) > 0 && rng.Intn(5) > 0 {
				ref = s.Messages[rng.Intn(len(s.Messages))]
			} else if rng.Intn(2) == 0 {
				ref = NewMessage(RoleUser, "ghost")
			}

			var inserted *Message
			switch rng.Intn(4) {
			case 0:
				s.Delete(ref)
			case 1:
				inserted = NewMessage(RoleAssistant, "new")
				s.InsertBefore(ref, inserted)
			case 2:
				inserted = NewMessage(RoleAssistant, "new")
				s.InsertAfter(ref, inserted)
			case 3:
				s.Truncate(ref)
			}

			// Every surviving pre-existing message must appear in the same
			// relative order as before.
			var survivors []*Message
			for _, m := range s.Messages {
				if m != inserted {
					survivors = append(survivors, m)
				}
			}
			last := -1
			for _, m := range survivors {
				i := slices.Index(before, m)
				if i < 0 {
					t.Fatalf("round %d step %d: unknown message %s", round, step, m.ID)
				}
				if i <= last {
					t.Fatalf("round %d step %d: order changed", round, step)
				}
				last = i
			}
		}
	}
}

func TestSessionPrefix(t *testing.T) {
	s := newTestSession("a", "b", "c")
	target := s.Messages[1]

	t.Run("inclusive ends at target", func(t *testing.T) {
		got := s.Prefix(target.ID, true)
		if len(got) != 2 || got[1].ID != target.ID {
			t.Errorf("Prefix inclusive = %d messages", len(got))
		}
	})

	t.Run("exclusive stops before target", func(t *testing.T) {
		got := s.Prefix(target.ID, false)
		if len(got) != 1 || got[0].Content != "a" {
			t.Errorf("Prefix exclusive = %d messages", len(got))
		}
	})

	t.Run("prefix is a snapshot", func(t *testing.T) {
		got := s.Prefix(target.ID, true)
		s.Messages[0].Content = "changed"
		if got[0].Content != "a" {
			t.Errorf("snapshot followed live message: %q", got[0].Content)
		}
		s.Messages[0].Content = "a"
	})
}

func TestSessionReplace(t *testing.T) {
	s := newTestSession("a", "b")
	id := s.Messages[1].ID

	updated := &Message{ID: id, Role: RoleAssistant, Content: "b2"}
	if !s.Replace(id, updated) {
		t.Fatal("Replace() = false, want true")
	}
	if s.Messages[1] != updated {
		t.Error("message not replaced in place")
	}
	if s.Replace("missing", updated) {
		t.Error("Replace() of missing id = true, want false")
	}
}

func TestIsSaved(t *testing.T) {
	user := &models.User{ID: "u1", Name: "alice"}

	tests := []struct {
		name    string
		session *Session
		user    *models.User
		want    bool
	}{
		{"draft without id", &Session{UserID: "u1", loaded: true}, user, false},
		{"saved and loaded", &Session{ID: "c1", UserID: "u1", loaded: true}, user, true},
		{"not loaded", &Session{ID: "c1", UserID: "u1"}, user, false},
		{"other owner", &Session{ID: "c1", UserID: "u2", loaded: true}, user, false},
		{"no user", &Session{ID: "c1", UserID: "u1", loaded: true}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsSaved(tt.user); got != tt.want {
				t.Errorf("IsSaved() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	s := newTestSession("hello", "world")
	s.Name = "greeting"
	s.Settings.Prompt = "be terse"
	s.Settings.Determinism = 80
	s.Messages[1].FinishReason = FinishReasonLength
	s.Messages[1].StartInEditMode = true

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(string(data), "StartInEditMode") {
		t.Error("transient field was serialized")
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.Loaded() {
		t.Error("decoded session should be loaded")
	}
	if got.Settings != s.Settings {
		t.Errorf("Settings = %+v, want %+v", got.Settings, s.Settings)
	}
	if len(got.Messages) != 2 || got.Messages[1].FinishReason != FinishReasonLength {
		t.Errorf("messages not preserved: %+v", got.Messages)
	}
	if got.Messages[1].StartInEditMode {
		t.Error("StartInEditMode should not survive a round trip")
	}
}

func TestDecodeToleratesNullsAndMissingFields(t *testing.T) {
	got, err := Decode([]byte(`{"messages":[null,{"id":"m1","role":"user"}]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Messages) != 1 {
		t.Errorf("len = %d, want 1", len(got.Messages))
	}
	if got.Settings.Model != DefaultModel || got.Settings.MaxTokens != DefaultMaxTokens {
		t.Errorf("settings not defaulted: %+v", got.Settings)
	}

	if _, err := Decode([]byte(`{"messages":`)); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestSession("a")
	s.SetInFlightCost(0.5)
	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Append(NewMessage(RoleUser, "b"))

	if s.Messages[0].Content != "a" || len(s.Messages) != 1 {
		t.Error("clone shares state with original")
	}
	if c.InFlightCost() != 0.5 || !c.Loaded() {
		t.Error("clone lost transient state")
	}
}
