package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// TaskRecord is the server-side shape of a task. The system of record
// has no notion of the client's sync state.
type TaskRecord struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"userId" db:"user_id"`
	Text        string     `json:"text" db:"text"`
	Completed   bool       `json:"completed" db:"completed"`
	CompletedBy *string    `json:"completedBy,omitempty" db:"completed_by"`
	Color       string     `json:"color" db:"color"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	Position    float64    `json:"position" db:"position"`
	DueDate     *time.Time `json:"dueDate,omitempty" db:"due_date"`
	Priority    *int       `json:"priority,omitempty" db:"priority"`
}

// TagRecord is the server-side shape of a tag.
type TagRecord struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	UserID    string    `json:"userId" db:"user_id"`
	ParentID  *string   `json:"parentId,omitempty" db:"parent_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

const serverSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	text         TEXT NOT NULL CHECK(text <> ''),
	completed    INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	completed_by TEXT,
	color        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	position     REAL NOT NULL,
	due_date     DATETIME,
	priority     INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);

CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	color      TEXT NOT NULL DEFAULT '',
	user_id    TEXT NOT NULL,
	parent_id  TEXT REFERENCES tags(id) ON DELETE SET NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(user_id, name)
);

CREATE INDEX IF NOT EXISTS idx_tags_user_id ON tags(user_id);
`

// Store is the server's system of record, backed by SQLite.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) the server database at dbPath and ensures
// the schema exists.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening server db: %w", err)
	}
	// SQLite serializes writes anyway; one connection keeps the WAL
	// pragma effective across all statements.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(serverSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating server schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ApplyBatch commits a client's sync batch inside one transaction:
// upsert of new tasks, per-id update of changed tasks, and delete-by-id
// of removed tasks. Either the whole batch lands or none of it does.
// The batch is idempotent: inserts replace an already-present row and
// deleting an id the server has never seen is a no-op, so a client that
// lost the confirmation response can safely resubmit the same batch.
func (s *Store) ApplyBatch(ctx context.Context, userID string, created, updated, deleted []TaskRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT OR REPLACE INTO tasks (
			id, user_id, text, completed, completed_by, color,
			created_at, updated_at, position, due_date, priority
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, t := range created {
		_, err := tx.ExecContext(ctx, insert,
			t.ID, userID, t.Text, boolToInt(t.Completed), t.CompletedBy, t.Color,
			t.CreatedAt.UTC(), t.UpdatedAt.UTC(), t.Position, t.DueDate, t.Priority,
		)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}

	const update = `
		UPDATE tasks SET
			text = ?, completed = ?, completed_by = ?, color = ?,
			updated_at = ?, position = ?, due_date = ?, priority = ?
		WHERE id = ? AND user_id = ?`

	for _, t := range updated {
		_, err := tx.ExecContext(ctx, update,
			t.Text, boolToInt(t.Completed), t.CompletedBy, t.Color,
			t.UpdatedAt.UTC(), t.Position, t.DueDate, t.Priority,
			t.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("updating task %s: %w", t.ID, err)
		}
	}

	if len(deleted) > 0 {
		ids := make([]string, len(deleted))
		for i, t := range deleted {
			ids[i] = t.ID
		}
		query, args, err := sqlx.In(
			"DELETE FROM tasks WHERE user_id = ? AND id IN (?)", userID, ids)
		if err != nil {
			return fmt.Errorf("building delete query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
	}

	return tx.Commit()
}

// Tasks returns all of a user's tasks ordered by position.
func (s *Store) Tasks(ctx context.Context, userID string) ([]TaskRecord, error) {
	var tasks []TaskRecord
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM tasks WHERE user_id = ? ORDER BY position", userID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t            TaskRecord
			completedInt int
		)
		err := rows.Scan(
			&t.ID, &t.UserID, &t.Text, &completedInt, &t.CompletedBy, &t.Color,
			&t.CreatedAt, &t.UpdatedAt, &t.Position, &t.DueDate, &t.Priority,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		t.Completed = completedInt != 0
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Tags returns all of a user's tags ordered by name.
func (s *Store) Tags(ctx context.Context, userID string) ([]TagRecord, error) {
	var tags []TagRecord
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM tags WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t TagRecord
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.UserID, &t.ParentID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// errDuplicateTag marks a tag name collision for a user.
var errDuplicateTag = fmt.Errorf("duplicate tag name")

// CreateTag inserts a new tag, rejecting duplicate names per user.
func (s *Store) CreateTag(ctx context.Context, tag TagRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, color, user_id, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tag.ID, tag.Name, tag.Color, tag.UserID, tag.ParentID, tag.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("tag %q for user %s: %w", tag.Name, tag.UserID, errDuplicateTag)
		}
		return fmt.Errorf("inserting tag %s: %w", tag.ID, err)
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
