// Package storage is the relational persistence engine (spec §4.3): user
// library, playlists, addons, and the two-namespace TTL cache, fronted by a
// monotone versioned migration ladder over modernc.org/sqlite.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a single *sql.DB handle. Spec §5 calls for "the relational
// store (one handle, exclusive)" -- callers (the facade, in particular)
// serialize access with their own mutex rather than this package attempting
// connection pooling tricks; modernc.org/sqlite is not safe for concurrent
// writers from multiple connections against one file without WAL tuning, so
// Open sets MaxOpenConns(1) to make that explicit.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path and runs the
// migration ladder. It fails with ErrSchemaTooNew if the on-disk schema is
// newer than this build's target version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for components that need it directly (the
// response cache, which shares the same file rather than opening a second
// connection).
func (s *Store) DB() *sql.DB {
	return s.db
}
