package store

import (
	"context"
	"time"

	"github.com/ash-bergs/localtask/internal/model"
)

// TaskFilter controls filtering for task queries. Zero-value fields are
// ignored. Results are always ordered by position.
type TaskFilter struct {
	UserID         *string
	SyncStates     []model.SyncState
	Completed      *bool
	ExcludeDeleted bool
	Limit          int
}

// TaskPatch describes a partial update of a task. Nil pointers leave the
// corresponding column untouched; the Clear* flags null out optional
// columns. Required fields cannot be cleared, only replaced.
type TaskPatch struct {
	Text             *string
	Completed        *bool
	CompletedBy      *string
	ClearCompletedBy bool
	Color            *string
	Position         *float64
	DueDate          *time.Time
	ClearDueDate     bool
	Priority         *int
	ClearPriority    bool
	SyncState        *model.SyncState
	UpdatedAt        *time.Time
}

// IsZero reports whether the patch would change nothing.
func (p TaskPatch) IsZero() bool {
	return p.Text == nil && p.Completed == nil && p.CompletedBy == nil &&
		!p.ClearCompletedBy && p.Color == nil && p.Position == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.Priority == nil &&
		!p.ClearPriority && p.SyncState == nil && p.UpdatedAt == nil
}

// Store defines the persistence interface for tasks, tags, and their
// associations. Queries re-scan current state on every call; there are no
// stale cursors.
type Store interface {
	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) error
	// DeleteTask is idempotent: deleting an absent id is not an error.
	DeleteTask(ctx context.Context, id string) error
	MaxPosition(ctx context.Context, userID string) (float64, error)

	// === Bulk task variants (per-item semantics, best-effort) ===

	BulkInsertTasks(ctx context.Context, tasks []model.Task) error
	BulkGetTasks(ctx context.Context, ids []string) ([]model.Task, error)
	BulkDeleteTasks(ctx context.Context, ids []string) error
	BulkUpdateTasks(ctx context.Context, filter TaskFilter, patch TaskPatch) (int, error)

	// === Tags ===

	CreateTag(ctx context.Context, tag model.Tag) error
	GetTagByID(ctx context.Context, id string) (*model.Tag, error)
	GetTags(ctx context.Context, userID string) ([]model.Tag, error)
	DeleteTag(ctx context.Context, id string) error

	// === Task-tag links ===

	AddTaskTag(ctx context.Context, taskID, tagID string) error
	TagsForTask(ctx context.Context, taskID string) ([]model.Tag, error)
	DeleteTaskTagsForTask(ctx context.Context, taskID string) error
	DeleteTaskTagsForTag(ctx context.Context, tagID string) error

	Close() error
}
