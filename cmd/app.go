package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/guilhermegouw/parley/internal/auth"
	"github.com/guilhermegouw/parley/internal/config"
	"github.com/guilhermegouw/parley/internal/db"
	"github.com/guilhermegouw/parley/internal/debug"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/exchange"
	"github.com/guilhermegouw/parley/internal/persist"
	"github.com/guilhermegouw/parley/internal/pubsub"
	"github.com/guilhermegouw/parley/internal/remote"
	"github.com/guilhermegouw/parley/internal/state"
)

// closeTimeout bounds the final flush on exit.
const closeTimeout = 10 * time.Second

// app is one invocation's wiring of the state store and its services.
type app struct {
	cfg      *config.Config
	hub      *pubsub.Hub
	database *db.DB
	exchange *exchange.Client
	store    *state.Store
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("getting config flag: %w", err)
	}
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	debugMode, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("getting debug flag: %w", err)
	}
	if debugMode || cfg.Debug() {
		if debugErr := debug.Enable(cfg.LogPath()); debugErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to enable debug logging: %v\n", debugErr)
		} else {
			fmt.Fprintf(os.Stderr, "Debug: %s\n", cfg.LogPath())
		}
	}

	ephemeral, err := cmd.Flags().GetBool("ephemeral")
	if err != nil {
		return nil, fmt.Errorf("getting ephemeral flag: %w", err)
	}

	a := &app{cfg: cfg, hub: pubsub.NewHub()}
	var local persist.LocalStore
	if ephemeral {
		local = persist.NewMemoryStore()
	} else {
		a.database, err = db.Open(cfg.DatabasePath())
		if err != nil {
			a.hub.Shutdown()
			debug.Disable()
			return nil, fmt.Errorf("opening local state: %w", err)
		}
		local = persist.NewSQLiteStore(a.database)
	}

	rc := remote.NewClient(cfg.ServerURL)
	a.exchange = exchange.NewClient(exchange.NewWebSocketTransport(cfg.StreamURL, &http.Client{}), a.hub.Exchange)
	a.store = state.New(state.Options{
		Remote:    rc,
		Auth:      auth.NewClient(rc),
		Exchange:  a.exchange,
		Local:     local,
		Hub:       a.hub,
		Debounce:  cfg.Debounce(),
		Immediate: cfg.ImmediateDebounce(),
		Defaults:  cfg.ChatDefaults(),
	})

	errOut := cmd.ErrOrStderr()
	a.hub.Auth.Observe(cmd.Context(), func(ev pubsub.Event[events.AuthEvent]) {
		if ev.Payload.Type == events.AuthEventForcedLogout {
			fmt.Fprintln(errOut, "Session expired; log in again with \"parley login\"")
		}
	})

	if err := a.store.Load(cmd.Context()); err != nil {
		fmt.Fprintf(errOut, "Warning: %v\n", err)
	}
	if err := a.restoreFocus(cmd.Context()); err != nil {
		fmt.Fprintf(errOut, "Warning: reopening chat: %v\n", err)
	}
	return a, nil
}

// Close writes pending state and releases resources.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := a.saveFocus(ctx)
	if closeErr := a.store.Close(ctx); closeErr != nil {
		err = closeErr
	}
	a.hub.Shutdown()
	if a.database != nil {
		if dbErr := a.database.Close(); dbErr != nil && err == nil {
			err = dbErr
		}
	}
	debug.Disable()
	return err
}

// withApp wraps a command body with app setup and teardown.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("saving state: %w", closeErr)
			}
		}()
		return run(cmd, a, args)
	}
}
