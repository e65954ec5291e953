package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guilhermegouw/parley/internal/db"
)

// writeTestConfig points parley at dir for state and at serverURL for the
// remote store.
func writeTestConfig(t *testing.T, dir, serverURL string) string {
	t.Helper()
	cfg := map[string]any{
		"options": map[string]any{"data_directory": dir},
	}
	if serverURL != "" {
		cfg["server_url"] = serverURL
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "parley.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// runParley executes one parley invocation and returns its output.
func runParley(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	if err := root.Execute(); err != nil {
		t.Fatalf("parley %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestNewKeepsDraftAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")

	runParley(t, cfgPath, "edit", "0", "--after", "keep me")
	runParley(t, cfgPath, "new")

	if out := runParley(t, cfgPath, "show"); strings.Contains(out, "keep me") {
		t.Errorf("show after new = %q, want the empty draft", out)
	}
	if out := runParley(t, cfgPath, "open"); !strings.Contains(out, "keep me") {
		t.Errorf("open = %q, want the kept draft", out)
	}
	if out := runParley(t, cfgPath, "show"); !strings.Contains(out, "keep me") {
		t.Errorf("show after open = %q, want the draft to stay open", out)
	}
}

func TestOpenedChatStaysOpenAcrossRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/users/u1":
			_, _ = io.WriteString(w, `{"id":"u1","name":"alice"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/users/u1/chats":
			_, _ = io.WriteString(w, `[{"id":"c1","user_id":"u1","name":"Saved","messages":[]}]`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/chats/c1":
			_, _ = io.WriteString(w, `{"id":"c1","user_id":"u1","name":"Saved","messages":[{"id":"s1","role":"user","message":"saved hello"}]}`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/chats/c1":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, srv.URL)

	// A logged-in user with an unsaved draft.
	database, err := db.Open(filepath.Join(dir, "parley.db"))
	if err != nil {
		t.Fatal(err)
	}
	snapshot := `{"version":3,"user":{"id":"u1","name":"alice"},"session":"tok",` +
		`"chat":{"user_id":"u1","messages":[{"id":"d1","role":"user","message":"draft text"}]}}`
	if err := database.PutSnapshot(context.Background(), "app-state", 3, snapshot); err != nil {
		t.Fatal(err)
	}
	_ = database.Close()

	if out := runParley(t, cfgPath, "open", "c1"); !strings.Contains(out, "saved hello") {
		t.Fatalf("open c1 = %q", out)
	}
	out := runParley(t, cfgPath, "show")
	if !strings.Contains(out, "saved hello") || strings.Contains(out, "draft text") {
		t.Errorf("show = %q, want c1 still open", out)
	}
	if out := runParley(t, cfgPath, "open"); !strings.Contains(out, "draft text") {
		t.Errorf("open = %q, want the stashed draft back", out)
	}
}
