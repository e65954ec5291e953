package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const configFileName = "parley.json"

// ErrUnsetVariable is returned when a config value names an environment
// variable that is not set.
var ErrUnsetVariable = errors.New("environment variable is not set")

// Load finds and loads configuration from standard locations.
// It merges the global config with the nearest project config (project
// takes precedence), resolves $VARIABLE references, and fills defaults.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return load(GlobalConfigPath(), cwd)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(globalPath, cwd string) (*Config, error) {
	cfg := NewConfig()
	if err := loadFile(globalPath, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	if projectPath := findProjectConfig(cwd); projectPath != "" {
		projectCfg := NewConfig()
		if err := loadFile(projectPath, projectCfg); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
		mergeConfig(cfg, projectCfg)
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	if err := resolveConfig(cfg); err != nil {
		return err
	}
	applyDefaults(cfg)
	return nil
}

func loadFile(path string, cfg *Config) error {
	//nolint:gosec // G304: Path is from trusted config locations, not user input.
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// findProjectConfig walks up from dir looking for parley.json or
// .parley.json.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		hiddenPath := filepath.Join(dir, "."+configFileName)
		if _, err := os.Stat(hiddenPath); err == nil {
			return hiddenPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func mergeConfig(dst, src *Config) {
	if src.ServerURL != "" {
		dst.ServerURL = src.ServerURL
	}
	if src.StreamURL != "" {
		dst.StreamURL = src.StreamURL
	}
	if src.DefaultModel != "" {
		dst.DefaultModel = src.DefaultModel
	}
	dst.Models = mergeModels(dst.Models, src.Models)

	if src.Options != nil {
		if dst.Options == nil {
			dst.Options = &Options{}
		}
		if src.Options.DataDir != "" {
			dst.Options.DataDir = src.Options.DataDir
		}
		if src.Options.DebounceMs > 0 {
			dst.Options.DebounceMs = src.Options.DebounceMs
		}
		if src.Options.ImmediateDebounceMs > 0 {
			dst.Options.ImmediateDebounceMs = src.Options.ImmediateDebounceMs
		}
		if src.Options.Debug {
			dst.Options.Debug = true
		}
	}
}

// resolveConfig expands $VARIABLE references in the string fields that
// commonly come from the environment.
func resolveConfig(cfg *Config) error {
	fields := []*string{&cfg.ServerURL, &cfg.StreamURL, &cfg.DefaultModel}
	if cfg.Options != nil {
		fields = append(fields, &cfg.Options.DataDir)
	}
	for _, f := range fields {
		resolved, err := Resolve(*f)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

// Resolve expands $VAR and ${VAR} references in value. Referencing an
// unset variable is an error.
func Resolve(value string) (string, error) {
	var missing []string
	out := os.Expand(value, func(name string) string {
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("resolving %q: %w: %s", value, ErrUnsetVariable, strings.Join(missing, ", "))
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Options == nil {
		cfg.Options = &Options{}
	}
	if cfg.Options.DataDir == "" {
		cfg.Options.DataDir = filepath.Join(xdg.DataHome, appName)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.StreamURL == "" {
		cfg.StreamURL = streamURLFor(cfg.ServerURL)
	}
	cfg.Models = mergeModels(DefaultModels(), cfg.Models)
}

// streamURLFor derives the WebSocket endpoint from the server URL.
func streamURLFor(server string) string {
	u, err := url.Parse(server)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + DefaultStreamPath
	return u.String()
}

// GlobalConfigPath returns the path to the global configuration file.
func GlobalConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, configFileName)
}
