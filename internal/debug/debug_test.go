package debug

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledLogIsNoop(t *testing.T) {
	Disable()
	if IsEnabled() {
		t.Fatal("expected logging to be disabled")
	}
	Log("dropped %d", 1)
}

func TestEnableWriter(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Event("store", "chat_opened", "id=c1")
	Error("persist", errors.New("disk full"), "local write")

	out := buf.String()
	if !strings.Contains(out, "[store] chat_opened: id=c1") {
		t.Errorf("missing event line:\n%s", out)
	}
	if !strings.Contains(out, "[persist] ERROR: local write - disk full") {
		t.Errorf("missing error line:\n%s", out)
	}
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	if err := Enable(path); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	Log("hello %s", "world")
	if got := LogPath(); got != path {
		t.Errorf("LogPath() = %q, want %q", got, path)
	}
	Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "parley debug session") {
		t.Errorf("missing session header:\n%s", data)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("missing message:\n%s", data)
	}
}
