package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/guilhermegouw/parley/internal/db"
)

// SnapshotKey is the fixed key the application snapshot is stored under.
const SnapshotKey = "app-state"

// ErrNoSnapshot means nothing has been stored yet (first run).
var ErrNoSnapshot = errors.New("no snapshot stored")

// LocalStore holds the single durable snapshot document.
type LocalStore interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, version int, data []byte) error
}

// SQLiteStore keeps the snapshot in the snapshots table.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a store backed by database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Get returns the stored snapshot, or ErrNoSnapshot.
func (s *SQLiteStore) Get(ctx context.Context) ([]byte, error) {
	row, err := s.db.GetSnapshot(ctx, SnapshotKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return []byte(row.Data), nil
}

// Put replaces the stored snapshot.
func (s *SQLiteStore) Put(ctx context.Context, version int, data []byte) error {
	return s.db.PutSnapshot(ctx, SnapshotKey, version, string(data))
}

// MemoryStore is a LocalStore that lives only as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns a copy of the stored snapshot, or ErrNoSnapshot.
func (s *MemoryStore) Get(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), s.data...), nil
}

// Put replaces the stored snapshot.
func (s *MemoryStore) Put(_ context.Context, _ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.writes++
	return nil
}

// Writes returns how many times Put has been called.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
