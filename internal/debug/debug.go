// Package debug provides development logging for parley.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timeLayout = "15:04:05.000"

var (
	mu      sync.Mutex
	out     io.Writer
	logFile *os.File
	logPath string
)

// Enable turns on debug logging to the specified file.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	logFile = f
	logPath = path
	out = f

	now := time.Now()
	ts := now.Format(timeLayout)
	fmt.Fprintf(out, "[%s] === parley debug session %s (pid %d) ===\n", ts, now.Format(time.RFC3339), os.Getpid())
	_ = f.Sync()

	return nil
}

// EnableWriter sends debug output to w. Tests use it to capture the log.
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	out = w
	logPath = ""
}

// Disable turns off debug logging and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	out = nil
}

func closeFile() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// IsEnabled returns whether debug logging is enabled.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return out != nil
}

// LogPath returns the path to the log file.
func LogPath() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Log writes a debug message if logging is enabled.
func Log(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if out == nil {
		return
	}

	fmt.Fprintf(out, "[%s] %s\n", time.Now().Format(timeLayout), fmt.Sprintf(format, args...))
	if logFile != nil {
		_ = logFile.Sync()
	}
}

// Event logs a state transition for a component.
func Event(component, eventType, details string) {
	Log("[%s] %s: %s", component, eventType, details)
}

// Error logs a degraded failure with context.
func Error(component string, err error, context string) {
	Log("[%s] ERROR: %s - %v", component, context, err)
}
