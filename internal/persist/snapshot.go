// Package persist keeps the durable copy of application state: a debounced
// local snapshot plus the remote mirror of the active saved chat.
package persist

import (
	"encoding/json"
	"fmt"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/models"
)

// CurrentVersion is the snapshot schema version written by this build.
const CurrentVersion = 3

// Snapshot is the versioned local record of application state.
type Snapshot struct { //nolint:govet // fieldalignment: preserving logical field order
	Version    int               `json:"version"`
	User       *models.User      `json:"user"`
	Credential models.Credential `json:"session,omitempty"`
	Chat       *chat.Session     `json:"chat"`
}

// Encode serializes the snapshot at the current version.
func (s *Snapshot) Encode() ([]byte, error) {
	out := *s
	out.Version = CurrentVersion
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot migrates data to the current version and decodes it.
// A snapshot without a chat decodes with a nil Chat.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	migrated, err := Migrate(data)
	if err != nil {
		return nil, err
	}

	var s Snapshot
	if err := json.Unmarshal(migrated, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.Chat != nil {
		s.Chat.Restore()
	}
	return &s, nil
}
