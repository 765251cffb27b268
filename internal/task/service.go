package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ash-bergs/localtask/internal/model"
	"github.com/ash-bergs/localtask/internal/stats"
	"github.com/ash-bergs/localtask/internal/store"
)

// Syncer reconciles a user's pending local changes with the remote
// system of record and returns the number of rows marked synced.
type Syncer interface {
	Sync(ctx context.Context, userID string) (int, error)
}

// Service enforces task invariants (ordering, sync-state transitions,
// tag associations) on top of the store.
type Service struct {
	store     store.Store
	syncer    Syncer
	publisher *stats.Publisher
}

// New creates a Service. syncer and publisher may be nil; Sync then
// fails and snapshots are not published.
func New(s store.Store, syncer Syncer, publisher *stats.Publisher) *Service {
	return &Service{store: s, syncer: syncer, publisher: publisher}
}

// AddOptions carries the optional fields of Add.
type AddOptions struct {
	TagIDs   []string
	DueDate  *time.Time
	Priority *int
	Color    string
}

// demote returns the sync state a task moves to when mutated locally.
// Only synced tasks change; everything else already reflects a pending
// local difference.
func demote(cur model.SyncState) model.SyncState {
	switch cur {
	case model.SyncStateSynced:
		return model.SyncStatePending
	case model.SyncStateNew:
		return model.SyncStateNew
	case model.SyncStatePending:
		return model.SyncStatePending
	case model.SyncStateDeleted:
		return model.SyncStateDeleted
	default:
		return model.SyncStatePending
	}
}

// Add creates a task for the user, appending it past the user's highest
// position and tagging it new. Tag links are created for each id in
// opts.TagIDs and the returned task carries its resolved tags.
func (s *Service) Add(ctx context.Context, userID, text string, opts AddOptions) (*model.Task, error) {
	maxPos, err := s.store.MaxPosition(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("computing position: %w", err)
	}

	now := time.Now().UTC()
	task := model.Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Text:      text,
		Color:     opts.Color,
		CreatedAt: now,
		UpdatedAt: now,
		Position:  maxPos + 1.0,
		DueDate:   opts.DueDate,
		Priority:  opts.Priority,
		SyncState: model.SyncStateNew,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("adding task: %w", err)
	}

	for _, tagID := range opts.TagIDs {
		if err := s.store.AddTaskTag(ctx, task.ID, tagID); err != nil {
			return nil, fmt.Errorf("tagging task %s: %w", task.ID, err)
		}
	}

	tags, err := s.store.TagsForTask(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving tags for task %s: %w", task.ID, err)
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	task.Tags = tags

	s.publish(ctx, userID)
	return &task, nil
}

// All returns the user's tasks ordered by position, excluding rows that
// are pending remote deletion. Each task carries its resolved tags; a
// task with no tags gets an empty list, never nil.
func (s *Service) All(ctx context.Context, userID string) ([]model.Task, error) {
	tasks, err := s.store.GetTasks(ctx, store.TaskFilter{
		UserID:         &userID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	for i := range tasks {
		tags, err := s.store.TagsForTask(ctx, tasks[i].ID)
		if err != nil {
			return nil, fmt.Errorf("resolving tags for task %s: %w", tasks[i].ID, err)
		}
		if tags == nil {
			tags = []model.Tag{}
		}
		tasks[i].Tags = tags
	}

	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// ToggleComplete sets a task's completion flag. Completing records who
// completed it; un-completing clears that. A synced task moves back to
// pending.
func (s *Service) ToggleComplete(ctx context.Context, id, userID string, completed bool) error {
	cur, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	next := demote(cur.SyncState)
	patch := store.TaskPatch{
		Completed: &completed,
		SyncState: &next,
		UpdatedAt: &now,
	}
	if completed {
		patch.CompletedBy = &userID
	} else {
		patch.ClearCompletedBy = true
	}

	if err := s.store.UpdateTask(ctx, id, patch); err != nil {
		return fmt.Errorf("toggling task %s: %w", id, err)
	}

	s.publish(ctx, cur.UserID)
	return nil
}

// ToggleCompleteOptimistic toggles completion locally, then runs commit
// (typically an immediate remote notification). If commit fails, the
// task is restored to its prior state.
func (s *Service) ToggleCompleteOptimistic(ctx context.Context, id, userID string, completed bool, commit func(context.Context) error) error {
	prior, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}

	apply := func(ctx context.Context) error {
		return s.ToggleComplete(ctx, id, userID, completed)
	}
	compensate := func(ctx context.Context) error {
		patch := store.TaskPatch{
			Completed: &prior.Completed,
			SyncState: &prior.SyncState,
			UpdatedAt: &prior.UpdatedAt,
		}
		if prior.CompletedBy != nil {
			patch.CompletedBy = prior.CompletedBy
		} else {
			patch.ClearCompletedBy = true
		}
		return s.store.UpdateTask(ctx, id, patch)
	}

	return RunOptimistic(ctx, apply, commit, compensate)
}

// SetDueDate updates (or clears, when due is nil) a task's due date.
func (s *Service) SetDueDate(ctx context.Context, id string, due *time.Time) error {
	patch := store.TaskPatch{DueDate: due, ClearDueDate: due == nil}
	return s.Update(ctx, id, patch)
}

// Update merges the patch into the task, stamping the update time and
// demoting a synced task back to pending. Any sync state or timestamp in
// the caller's patch is overridden.
func (s *Service) Update(ctx context.Context, id string, patch store.TaskPatch) error {
	cur, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	next := demote(cur.SyncState)
	patch.SyncState = &next
	patch.UpdatedAt = &now

	if err := s.store.UpdateTask(ctx, id, patch); err != nil {
		return fmt.Errorf("updating task %s: %w", id, err)
	}

	s.publish(ctx, cur.UserID)
	return nil
}

// SetPosition moves a task to an explicit position. Neighbors are never
// renormalized here; MoveBetween handles gap exhaustion.
func (s *Service) SetPosition(ctx context.Context, id string, position float64) error {
	if !isFinite(position) {
		return fmt.Errorf("position must be finite, got %v", position)
	}
	return s.Update(ctx, id, store.TaskPatch{Position: &position})
}

// MoveBetween places a task between two neighbors identified by id. An
// empty beforeID moves it ahead of afterID; an empty afterID appends it
// after beforeID. When the neighbor gap is too small to split, the
// user's positions are rebalanced first.
func (s *Service) MoveBetween(ctx context.Context, userID, id, beforeID, afterID string) error {
	pos, err := s.positionBetween(ctx, beforeID, afterID)
	if err == nil {
		return s.SetPosition(ctx, id, pos)
	}
	if !errors.Is(err, errGapExhausted) {
		return err
	}

	if err := s.Rebalance(ctx, userID); err != nil {
		return err
	}
	pos, err = s.positionBetween(ctx, beforeID, afterID)
	if err != nil {
		return err
	}
	return s.SetPosition(ctx, id, pos)
}

// errGapExhausted signals that two neighbor positions are too close to
// interpolate between.
var errGapExhausted = errors.New("position gap exhausted")

func (s *Service) positionBetween(ctx context.Context, beforeID, afterID string) (float64, error) {
	var beforePos, afterPos *float64

	if beforeID != "" {
		t, err := s.store.GetTaskByID(ctx, beforeID)
		if err != nil {
			return 0, err
		}
		beforePos = &t.Position
	}
	if afterID != "" {
		t, err := s.store.GetTaskByID(ctx, afterID)
		if err != nil {
			return 0, err
		}
		afterPos = &t.Position
	}

	switch {
	case beforePos == nil && afterPos == nil:
		return 0, fmt.Errorf("at least one neighbor id is required")
	case beforePos == nil:
		return *afterPos - 1.0, nil
	case afterPos == nil:
		return *beforePos + 1.0, nil
	default:
		mid, ok := Between(*beforePos, *afterPos)
		if !ok {
			return 0, errGapExhausted
		}
		return mid, nil
	}
}

// Rebalance reassigns integer-spaced positions (1.0, 2.0, ...) to all of
// a user's tasks in their current order. Tombstoned rows are included so
// relative order survives the next sync. Moved rows are demoted like any
// other local mutation.
func (s *Service) Rebalance(ctx context.Context, userID string) error {
	tasks, err := s.store.GetTasks(ctx, store.TaskFilter{UserID: &userID})
	if err != nil {
		return fmt.Errorf("rebalancing positions: %w", err)
	}

	now := time.Now().UTC()
	for i, t := range tasks {
		pos := float64(i + 1)
		if t.Position == pos {
			continue
		}
		next := demote(t.SyncState)
		err := s.store.UpdateTask(ctx, t.ID, store.TaskPatch{
			Position:  &pos,
			SyncState: &next,
			UpdatedAt: &now,
		})
		if err != nil {
			return fmt.Errorf("rebalancing task %s: %w", t.ID, err)
		}
	}

	s.publish(ctx, userID)
	return nil
}

// Delete removes a task's tag links, then either purges the row (a new
// task the server has never seen) or tombstones it for the next sync.
// Deleting an absent id is a no-op.
func (s *Service) Delete(ctx context.Context, id string) error {
	cur, err := s.store.GetTaskByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.DeleteTaskTagsForTask(ctx, id); err != nil {
		return err
	}

	if cur.SyncState == model.SyncStateNew {
		if err := s.store.DeleteTask(ctx, id); err != nil {
			return err
		}
	} else {
		deleted := model.SyncStateDeleted
		now := time.Now().UTC()
		err := s.store.UpdateTask(ctx, id, store.TaskPatch{
			SyncState: &deleted,
			UpdatedAt: &now,
		})
		if err != nil {
			return fmt.Errorf("tombstoning task %s: %w", id, err)
		}
	}

	s.publish(ctx, cur.UserID)
	return nil
}

// DeleteMany deletes each id in turn. Empty input is a successful no-op;
// per-item failures are joined.
func (s *Service) DeleteMany(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sync reconciles the user's pending local changes with the remote
// endpoint via the configured Syncer.
func (s *Service) Sync(ctx context.Context, userID string) (int, error) {
	if s.syncer == nil {
		return 0, fmt.Errorf("no sync endpoint configured")
	}
	n, err := s.syncer.Sync(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, userID)
	return n, nil
}

// publish pushes a fresh snapshot of the user's live tasks to stats
// subscribers. Best-effort: a failed read just skips the snapshot.
func (s *Service) publish(ctx context.Context, userID string) {
	if s.publisher == nil {
		return
	}
	tasks, err := s.store.GetTasks(ctx, store.TaskFilter{
		UserID:         &userID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return
	}
	s.publisher.Publish(userID, tasks)
}
