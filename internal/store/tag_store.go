package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ash-bergs/localtask/internal/model"
)

// CreateTag inserts a new tag. A duplicate id or a duplicate name for the
// same user fails with ErrDuplicateKey. A parent, if set, must exist and
// belong to the same user.
func (s *SQLiteStore) CreateTag(ctx context.Context, tag model.Tag) error {
	if strings.TrimSpace(tag.Name) == "" {
		return fmt.Errorf("tag name must not be empty")
	}

	if tag.ParentID != nil {
		parent, err := s.GetTagByID(ctx, *tag.ParentID)
		if err != nil {
			return fmt.Errorf("resolving parent tag: %w", err)
		}
		if parent.UserID != tag.UserID {
			return fmt.Errorf("parent tag %s belongs to another user", parent.ID)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, color, user_id, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tag.ID, tag.Name, tag.Color, tag.UserID, tag.ParentID, tag.CreatedAt.UTC(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("inserting tag %s: %w", tag.ID, ErrDuplicateKey)
		}
		return fmt.Errorf("inserting tag %s: %w: %w", tag.ID, ErrWrite, err)
	}
	return nil
}

// GetTagByID retrieves a single tag by its id.
func (s *SQLiteStore) GetTagByID(ctx context.Context, id string) (*model.Tag, error) {
	var tag model.Tag
	err := s.db.QueryRowxContext(ctx, "SELECT * FROM tags WHERE id = ?", id).Scan(
		&tag.ID, &tag.Name, &tag.Color, &tag.UserID, &tag.ParentID, &tag.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag %s: %w", id, err)
	}
	return &tag, nil
}

// GetTags retrieves all of a user's tags ordered by name.
func (s *SQLiteStore) GetTags(ctx context.Context, userID string) ([]model.Tag, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM tags WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.UserID, &t.ParentID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag. The CASCADE on task_tags removes associations
// and children are re-rooted via ON DELETE SET NULL.
func (s *SQLiteStore) DeleteTag(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting tag %s: %w: %w", id, ErrWrite, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("tag %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddTaskTag links a task to a tag. Linking the same pair twice fails
// with ErrDuplicateKey.
func (s *SQLiteStore) AddTaskTag(ctx context.Context, taskID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_tags (task_id, tag_id) VALUES (?, ?)", taskID, tagID)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("linking task %s to tag %s: %w", taskID, tagID, ErrDuplicateKey)
		}
		return fmt.Errorf("linking task %s to tag %s: %w: %w", taskID, tagID, ErrWrite, err)
	}
	return nil
}

// TagsForTask retrieves all tags associated with a task, ordered by name.
func (s *SQLiteStore) TagsForTask(ctx context.Context, taskID string) ([]model.Tag, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT t.* FROM tags t
		INNER JOIN task_tags tt ON t.id = tt.tag_id
		WHERE tt.task_id = ?
		ORDER BY t.name`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying tags for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.UserID, &t.ParentID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// DeleteTaskTagsForTask removes every link referencing the task.
func (s *SQLiteStore) DeleteTaskTagsForTask(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM task_tags WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("clearing tags for task %s: %w: %w", taskID, ErrWrite, err)
	}
	return nil
}

// DeleteTaskTagsForTag removes every link referencing the tag.
func (s *SQLiteStore) DeleteTaskTagsForTag(ctx context.Context, tagID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM task_tags WHERE tag_id = ?", tagID); err != nil {
		return fmt.Errorf("clearing links for tag %s: %w: %w", tagID, ErrWrite, err)
	}
	return nil
}
