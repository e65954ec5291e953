// Package config provides configuration management for parley.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/catwalk/pkg/catwalk"
	"github.com/tidwall/sjson"

	"github.com/guilhermegouw/parley/internal/chat"
)

const appName = "parley"

// Defaults used when the configuration leaves a field unset.
const (
	DefaultServerURL           = "http://localhost"
	DefaultStreamPath          = "/api/ws/chat"
	DefaultDebounceMillis      = 1000
	DefaultImmediateDebounceMs = 10
)

// Config is the top-level configuration structure.
//
//nolint:govet // Field order is intentional for JSON readability.
type Config struct {
	ServerURL    string          `json:"server_url,omitempty"`
	StreamURL    string          `json:"stream_url,omitempty"`
	DefaultModel string          `json:"default_model,omitempty"`
	Models       []catwalk.Model `json:"models,omitempty"`
	Options      *Options        `json:"options,omitempty"`
}

// Options holds optional configuration settings.
//
//nolint:govet // Field order is intentional for JSON readability.
type Options struct {
	DataDir             string `json:"data_directory,omitempty"`
	DebounceMs          int    `json:"debounce_ms,omitempty"`
	ImmediateDebounceMs int    `json:"immediate_debounce_ms,omitempty"`
	Debug               bool   `json:"debug,omitempty"`
}

// NewConfig creates a new Config with initialized options.
func NewConfig() *Config {
	return &Config{Options: &Options{}}
}

// GetModel returns the catalog entry for id, or nil.
func (c *Config) GetModel(id string) *catwalk.Model {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i]
		}
	}
	return nil
}

// ChatDefaults returns the settings new chats start with: the configured
// default model and its default token budget.
func (c *Config) ChatDefaults() chat.Settings {
	s := chat.DefaultSettings()
	if c.DefaultModel != "" {
		s.Model = c.DefaultModel
	}
	if m := c.GetModel(s.Model); m != nil && m.DefaultMaxTokens > 0 {
		s.MaxTokens = m.DefaultMaxTokens
	}
	return s
}

// Debounce returns the delay before ordinary edits are written.
func (c *Config) Debounce() time.Duration {
	ms := DefaultDebounceMillis
	if c.Options != nil && c.Options.DebounceMs > 0 {
		ms = c.Options.DebounceMs
	}
	return time.Duration(ms) * time.Millisecond
}

// ImmediateDebounce returns the delay before urgent changes are written.
func (c *Config) ImmediateDebounce() time.Duration {
	ms := DefaultImmediateDebounceMs
	if c.Options != nil && c.Options.ImmediateDebounceMs > 0 {
		ms = c.Options.ImmediateDebounceMs
	}
	return time.Duration(ms) * time.Millisecond
}

// DataDir returns the data directory path from configuration.
func (c *Config) DataDir() string {
	if c.Options != nil && c.Options.DataDir != "" {
		return c.Options.DataDir
	}
	return filepath.Join(xdg.DataHome, appName)
}

// DatabasePath returns the path of the local snapshot database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), appName+".db")
}

// LogPath returns the path of the debug log.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir(), "debug.log")
}

// Debug reports whether debug logging is enabled in the file.
func (c *Config) Debug() bool {
	return c.Options != nil && c.Options.Debug
}

// SetConfigField updates a single field in the global config file using
// JSON path notation.
func (c *Config) SetConfigField(key string, value any) error {
	return SetField(GlobalConfigPath(), key, value)
}

// SetField updates a single field of the config file at path. Only the
// named key is touched; the rest of the file is kept byte for byte.
func SetField(path, key string, value any) error {
	//nolint:gosec // G304: path is a trusted config location, not user input.
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading config file: %w", err)
		}
		data = []byte("{}")
	}

	newData, err := sjson.SetBytes(data, key, value)
	if err != nil {
		return fmt.Errorf("setting config field %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	//nolint:gosec // 0o600 is intentionally restrictive for security.
	if err := os.WriteFile(path, newData, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
