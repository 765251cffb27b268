package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ash-bergs/localtask/internal/model"
)

// CreateTask inserts a new task. Fails with ErrDuplicateKey if the id
// already exists.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) error {
	if strings.TrimSpace(task.Text) == "" {
		return fmt.Errorf("task text must not be empty")
	}
	if !task.SyncState.Valid() {
		return fmt.Errorf("invalid sync state %q", task.SyncState)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, user_id, text, completed, completed_by, color,
			created_at, updated_at, position, due_date, priority, sync_state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Text, boolToInt(task.Completed),
		task.CompletedBy, task.Color,
		task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
		task.Position, task.DueDate, task.Priority, string(task.SyncState),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("inserting task %s: %w", task.ID, ErrDuplicateKey)
		}
		return fmt.Errorf("inserting task %s: %w: %w", task.ID, ErrWrite, err)
	}
	return nil
}

// GetTaskByID retrieves a single task by its id, without tags.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM tasks WHERE id = ?", id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &task, nil
}

// GetTasks retrieves tasks matching the filter, ordered by position.
// Each call re-scans current state; there is no cursor to go stale.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query, args := buildTaskQuery("SELECT *", filter)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask merges the patch into an existing task. Fails with
// ErrNotFound if the id is absent. Required fields can be replaced but
// never cleared.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	if patch.IsZero() {
		return nil
	}

	set, args, err := buildTaskPatch(patch)
	if err != nil {
		return err
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating task %s: %w: %w", id, ErrWrite, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task row. Deleting an absent id is not an error.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w: %w", id, ErrWrite, err)
	}
	return nil
}

// MaxPosition returns the highest position among a user's tasks, or 0 if
// the user has none.
func (s *SQLiteStore) MaxPosition(ctx context.Context, userID string) (float64, error) {
	var max float64
	err := s.db.GetContext(ctx, &max,
		"SELECT COALESCE(MAX(position), 0) FROM tasks WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("getting max position for %s: %w", userID, err)
	}
	return max, nil
}

// BulkInsertTasks inserts each task independently. A failed item does not
// roll back the items already inserted; all per-item errors are joined.
func (s *SQLiteStore) BulkInsertTasks(ctx context.Context, tasks []model.Task) error {
	var errs []error
	for _, t := range tasks {
		if err := s.CreateTask(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BulkGetTasks retrieves the tasks whose ids are present. Missing ids are
// skipped, not errors.
func (s *SQLiteStore) BulkGetTasks(ctx context.Context, ids []string) ([]model.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT * FROM tasks WHERE id IN (?) ORDER BY position", ids)
	if err != nil {
		return nil, fmt.Errorf("building bulk get query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks by ids: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// BulkDeleteTasks removes the given ids. Absent ids are ignored.
func (s *SQLiteStore) BulkDeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM tasks WHERE id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("building bulk delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("bulk deleting tasks: %w: %w", ErrWrite, err)
	}
	return nil
}

// BulkUpdateTasks applies the patch to every task matching the filter and
// returns the number of rows changed.
func (s *SQLiteStore) BulkUpdateTasks(ctx context.Context, filter TaskFilter, patch TaskPatch) (int, error) {
	if patch.IsZero() {
		return 0, nil
	}

	set, setArgs, err := buildTaskPatch(patch)
	if err != nil {
		return 0, err
	}

	where, whereArgs := buildTaskConditions(filter)
	query := "UPDATE tasks SET " + strings.Join(set, ", ")
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	result, err := s.db.ExecContext(ctx, query, append(setArgs, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("bulk updating tasks: %w: %w", ErrWrite, err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// buildTaskConditions translates a TaskFilter into WHERE conditions.
func buildTaskConditions(filter TaskFilter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if len(filter.SyncStates) > 0 {
		placeholders := make([]string, len(filter.SyncStates))
		for i, st := range filter.SyncStates {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		conditions = append(conditions,
			"sync_state IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Completed != nil {
		conditions = append(conditions, "completed = ?")
		args = append(args, boolToInt(*filter.Completed))
	}
	if filter.ExcludeDeleted {
		conditions = append(conditions, "sync_state != ?")
		args = append(args, string(model.SyncStateDeleted))
	}

	return conditions, args
}

// buildTaskQuery constructs the SQL query and args for a TaskFilter.
func buildTaskQuery(selectClause string, filter TaskFilter) (string, []interface{}) {
	conditions, args := buildTaskConditions(filter)

	query := selectClause + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY position"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	return query, args
}

// buildTaskPatch translates a TaskPatch into SET clauses.
func buildTaskPatch(patch TaskPatch) ([]string, []interface{}, error) {
	var set []string
	var args []interface{}

	if patch.Text != nil {
		if strings.TrimSpace(*patch.Text) == "" {
			return nil, nil, fmt.Errorf("task text must not be cleared")
		}
		set = append(set, "text = ?")
		args = append(args, *patch.Text)
	}
	if patch.Completed != nil {
		set = append(set, "completed = ?")
		args = append(args, boolToInt(*patch.Completed))
	}
	if patch.ClearCompletedBy {
		set = append(set, "completed_by = NULL")
	} else if patch.CompletedBy != nil {
		set = append(set, "completed_by = ?")
		args = append(args, *patch.CompletedBy)
	}
	if patch.Color != nil {
		set = append(set, "color = ?")
		args = append(args, *patch.Color)
	}
	if patch.Position != nil {
		set = append(set, "position = ?")
		args = append(args, *patch.Position)
	}
	if patch.ClearDueDate {
		set = append(set, "due_date = NULL")
	} else if patch.DueDate != nil {
		set = append(set, "due_date = ?")
		args = append(args, patch.DueDate.UTC())
	}
	if patch.ClearPriority {
		set = append(set, "priority = NULL")
	} else if patch.Priority != nil {
		set = append(set, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.SyncState != nil {
		if !patch.SyncState.Valid() {
			return nil, nil, fmt.Errorf("invalid sync state %q", *patch.SyncState)
		}
		set = append(set, "sync_state = ?")
		args = append(args, string(*patch.SyncState))
	}
	if patch.UpdatedAt != nil {
		set = append(set, "updated_at = ?")
		args = append(args, patch.UpdatedAt.UTC())
	}

	return set, args, nil
}

// scanTask scans a task row from either sqlx.Rows or sqlx.Row.
func scanTask(row interface{ Scan(dest ...interface{}) error }) (model.Task, error) {
	var (
		task         model.Task
		completedInt int
		completedBy  *string
		dueDate      *time.Time
		priority     *int
		syncState    string
	)

	err := row.Scan(
		&task.ID, &task.UserID, &task.Text, &completedInt, &completedBy,
		&task.Color, &task.CreatedAt, &task.UpdatedAt, &task.Position,
		&dueDate, &priority, &syncState,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, err
		}
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	task.Completed = completedInt != 0
	task.CompletedBy = completedBy
	task.DueDate = dueDate
	task.Priority = priority

	state, err := model.ParseSyncState(syncState)
	if err != nil {
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}
	task.SyncState = state

	return task, nil
}
