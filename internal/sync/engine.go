// Package sync reconciles the local store's pending changes with the
// remote system of record. One invocation pushes one batch; no local
// state is touched until the server confirms the whole batch.
package sync

import (
	"context"
	"fmt"

	"github.com/ash-bergs/localtask/internal/model"
	"github.com/ash-bergs/localtask/internal/store"
)

// Engine batches a user's unsynced tasks, submits them to the remote
// endpoint, and reconciles local state on success. Callers serialize
// invocations per user; the engine does not defend against overlapping
// syncs beyond the atomicity of each local re-tag.
type Engine struct {
	store  store.Store
	client *Client
}

// NewEngine creates an Engine over the given store and client.
func NewEngine(s store.Store, c *Client) *Engine {
	return &Engine{store: s, client: c}
}

// Sync partitions the user's tasks by sync state, submits all three sets
// in a single batch, and on success purges tombstones and re-tags the
// rest as synced. It returns the number of rows transitioned to synced.
//
// On any transport or server failure it returns a *SyncError and leaves
// every local row exactly as it was, so the local store and the server
// never disagree about what was attempted but not confirmed.
func (e *Engine) Sync(ctx context.Context, userID string) (int, error) {
	tasks, err := e.store.GetTasks(ctx, store.TaskFilter{
		UserID: &userID,
		SyncStates: []model.SyncState{
			model.SyncStateNew,
			model.SyncStatePending,
			model.SyncStateDeleted,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("collecting unsynced tasks: %w", err)
	}

	batch := BatchRequest{
		UserID:       userID,
		NewTasks:     []payloadTask{},
		UpdatedTasks: []payloadTask{},
		DeletedTasks: []payloadTask{},
	}
	var deletedIDs []string

	for _, t := range tasks {
		switch t.SyncState {
		case model.SyncStateNew:
			batch.NewTasks = append(batch.NewTasks, toPayload(t))
		case model.SyncStatePending:
			batch.UpdatedTasks = append(batch.UpdatedTasks, toPayload(t))
		case model.SyncStateDeleted:
			batch.DeletedTasks = append(batch.DeletedTasks, toPayload(t))
			deletedIDs = append(deletedIDs, t.ID)
		case model.SyncStateSynced:
			// Filtered out by the query.
		}
	}

	if len(tasks) == 0 {
		return 0, nil
	}

	if err := e.client.PushBatch(ctx, batch); err != nil {
		return 0, &SyncError{UserID: userID, Cause: err}
	}

	// The server committed the batch; reconcile local state. Tombstones
	// go first so a crash between the two steps cannot resurrect them.
	if err := e.store.BulkDeleteTasks(ctx, deletedIDs); err != nil {
		return 0, fmt.Errorf("purging synced deletions: %w", err)
	}

	synced := model.SyncStateSynced
	count, err := e.store.BulkUpdateTasks(ctx,
		store.TaskFilter{
			UserID: &userID,
			SyncStates: []model.SyncState{
				model.SyncStateNew,
				model.SyncStatePending,
			},
		},
		store.TaskPatch{SyncState: &synced},
	)
	if err != nil {
		return 0, fmt.Errorf("marking tasks synced: %w", err)
	}

	return count, nil
}
