package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guilhermegouw/parley/internal/db"
	"github.com/guilhermegouw/parley/internal/state"
)

// focusKey stores which chat is open between runs, next to the state
// snapshot.
const focusKey = "focus"

// restoreFocus reopens the chat the previous run left open.
func (a *app) restoreFocus(ctx context.Context) error {
	if a.database == nil {
		return nil
	}
	row, err := a.database.GetSnapshot(ctx, focusKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var f state.Focus
	if err := json.Unmarshal([]byte(row.Data), &f); err != nil {
		return fmt.Errorf("decoding open chat: %w", err)
	}
	return a.store.Restore(ctx, f)
}

// saveFocus records the open chat for the next run.
func (a *app) saveFocus(ctx context.Context) error {
	if a.database == nil {
		return nil
	}
	f := a.store.Focus()
	if f.IsZero() {
		return a.database.DeleteSnapshot(ctx, focusKey)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding open chat: %w", err)
	}
	return a.database.PutSnapshot(ctx, focusKey, 1, string(data))
}
