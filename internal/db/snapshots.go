package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no snapshot is stored under a key.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotRow is one stored snapshot document.
type SnapshotRow struct { //nolint:govet // fieldalignment: preserving logical field order
	Key       string
	Version   int
	Data      string
	UpdatedAt time.Time
}

// GetSnapshot returns the snapshot stored under key.
func (d *DB) GetSnapshot(ctx context.Context, key string) (*SnapshotRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var (
		row       SnapshotRow
		updatedAt int64
	)
	err := d.conn.QueryRowContext(ctx,
		`SELECT key, version, data, updated_at FROM snapshots WHERE key = ?`, key).
		Scan(&row.Key, &row.Version, &row.Data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	row.UpdatedAt = time.UnixMilli(updatedAt)
	return &row, nil
}

// PutSnapshot stores data under key, replacing any previous document.
func (d *DB) PutSnapshot(ctx context.Context, key string, version int, data string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO snapshots (key, version, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		key, version, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}

// DeleteSnapshot removes the snapshot stored under key. Deleting a missing
// key is not an error.
func (d *DB) DeleteSnapshot(ctx context.Context, key string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, err := d.conn.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", key, err)
	}
	return nil
}
