package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite
// database. The store is a single-writer resource: a sidecar flock next
// to the database file keeps a second process from opening it.
type SQLiteStore struct {
	db   *sqlx.DB
	lock *flock.Flock
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, acquires
// the single-writer lock, enables WAL mode, and runs any pending schema
// migrations. In-memory databases skip the lock.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	var lock *flock.Flock
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		lock = flock.New(dbPath + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring db lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("database %s is in use by another process", dbPath)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: the client is a single-writer process, and the
	// pragmas below are per-connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		releaseLock(lock)
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys so task_tags cascades fire.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		releaseLock(lock)
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, lock: lock}
	if err := s.runMigrations(); err != nil {
		db.Close()
		releaseLock(lock)
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection and releases the writer lock.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	releaseLock(s.lock)
	return err
}

func releaseLock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
