// Package db provides the SQLite-backed durable store for application
// snapshots.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrSchemaTooNew means the database was written by a newer build.
var ErrSchemaTooNew = errors.New("state database schema is newer than this build")

// pragmas are applied to every connection through the DSN.
var pragmas = []string{
	"journal_mode(wal)",
	"foreign_keys(on)",
	"busy_timeout(5000)",
	"synchronous(normal)",
}

// DB is the snapshot database.
type DB struct {
	conn   *sql.DB
	path   string
	schema int64
	mu     sync.RWMutex
}

// Open creates or opens the snapshot database at dbPath and migrates its
// schema to the latest version known to this build.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	schema, err := migrate(context.Background(), conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn, path: dbPath, schema: schema}, nil
}

func dsn(path string) string {
	v := "file:" + path
	for i, p := range pragmas {
		sep := "&"
		if i == 0 {
			sep = "?"
		}
		v += sep + "_pragma=" + p
	}
	return v
}

// migrate applies pending migrations and returns the resulting schema
// version. A database ahead of the embedded migrations is refused.
func migrate(ctx context.Context, conn *sql.DB) (int64, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("reading migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, fsys)
	if err != nil {
		return 0, fmt.Errorf("loading migrations: %w", err)
	}

	current, latest, err := provider.GetVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if current > latest {
		return 0, fmt.Errorf("%w: version %d, expected at most %d", ErrSchemaTooNew, current, latest)
	}

	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("running migrations: %w", err)
	}
	return latest, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// SchemaVersion returns the migrated schema version.
func (d *DB) SchemaVersion() int64 {
	return d.schema
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.Close()
}
