package task_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ash-bergs/localtask/internal/model"
	"github.com/ash-bergs/localtask/internal/stats"
	"github.com/ash-bergs/localtask/internal/store"
	"github.com/ash-bergs/localtask/internal/task"
	"github.com/ash-bergs/localtask/tests/testutil"
)

func newService(t *testing.T) (*task.Service, *store.SQLiteStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	return task.New(s, nil, nil), s
}

func TestAddAssignsMonotonicPositions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, "u1", "Buy milk", task.AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.Position)
	assert.Equal(t, model.SyncStateNew, first.SyncState)
	assert.NotNil(t, first.Tags)
	assert.Empty(t, first.Tags)

	second, err := svc.Add(ctx, "u1", "Walk dog", task.AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, second.Position)

	// Another user's positions are independent.
	other, err := svc.Add(ctx, "u2", "Elsewhere", task.AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, other.Position)
}

func TestAddWithTags(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	home := testutil.SeedTag(t, s, "u1", "home")
	work := testutil.SeedTag(t, s, "u1", "work")

	created, err := svc.Add(ctx, "u1", "tagged", task.AddOptions{
		TagIDs: []string{home.ID, work.ID},
	})
	require.NoError(t, err)
	require.Len(t, created.Tags, 2)
	assert.Equal(t, "home", created.Tags[0].Name)
	assert.Equal(t, "work", created.Tags[1].Name)
}

func TestAllExcludesTombstones(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	testutil.SeedTask(t, s, "u1", "live", model.SyncStateSynced, 1.0)
	testutil.SeedTask(t, s, "u1", "tombstone", model.SyncStateDeleted, 2.0)

	tasks, err := svc.All(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "live", tasks[0].Text)
	assert.NotNil(t, tasks[0].Tags)
}

func TestAllEmptyIsNotNil(t *testing.T) {
	svc, _ := newService(t)

	tasks, err := svc.All(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestToggleCompleteDemotesSynced(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	synced := testutil.SeedTask(t, s, "u1", "done soon", model.SyncStateSynced, 1.0)

	require.NoError(t, svc.ToggleComplete(ctx, synced.ID, "u1", true))

	got, err := s.GetTaskByID(ctx, synced.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	require.NotNil(t, got.CompletedBy)
	assert.Equal(t, "u1", *got.CompletedBy)
	assert.Equal(t, model.SyncStatePending, got.SyncState)

	// Un-completing clears the completer and stays pending.
	require.NoError(t, svc.ToggleComplete(ctx, synced.ID, "u1", false))
	got, err = s.GetTaskByID(ctx, synced.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletedBy)
	assert.Equal(t, model.SyncStatePending, got.SyncState)
}

func TestToggleCompleteNotFound(t *testing.T) {
	svc, _ := newService(t)

	err := svc.ToggleComplete(context.Background(), "missing", "u1", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateLeavesNewAndDeletedStates(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	fresh := testutil.SeedTask(t, s, "u1", "fresh", model.SyncStateNew, 1.0)
	tombstone := testutil.SeedTask(t, s, "u1", "tombstone", model.SyncStateDeleted, 2.0)

	text := "still fresh"
	require.NoError(t, svc.Update(ctx, fresh.ID, store.TaskPatch{Text: &text}))
	got, err := s.GetTaskByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateNew, got.SyncState)

	text = "still doomed"
	require.NoError(t, svc.Update(ctx, tombstone.ID, store.TaskPatch{Text: &text}))
	got, err = s.GetTaskByID(ctx, tombstone.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateDeleted, got.SyncState)
}

func TestSetDueDateDemotes(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	synced := testutil.SeedTask(t, s, "u1", "due later", model.SyncStateSynced, 1.0)

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SetDueDate(ctx, synced.ID, &due))

	got, err := s.GetTaskByID(ctx, synced.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))
	assert.Equal(t, model.SyncStatePending, got.SyncState)
}

func TestSetPositionRejectsNonFinite(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	seeded := testutil.SeedTask(t, s, "u1", "movable", model.SyncStateSynced, 1.0)

	require.Error(t, svc.SetPosition(ctx, seeded.ID, math.NaN()))
	require.NoError(t, svc.SetPosition(ctx, seeded.ID, 0.5))

	got, err := s.GetTaskByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Position)
	assert.Equal(t, model.SyncStatePending, got.SyncState)
}

func TestDeletePurgesNewTask(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	fresh := testutil.SeedTask(t, s, "u1", "never synced", model.SyncStateNew, 1.0)

	require.NoError(t, svc.Delete(ctx, fresh.ID))

	_, err := s.GetTaskByID(ctx, fresh.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteTombstonesSyncedTask(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	synced := testutil.SeedTask(t, s, "u1", "known remotely", model.SyncStateSynced, 1.0)

	require.NoError(t, svc.Delete(ctx, synced.ID))

	// Still retrievable by direct lookup, excluded from All.
	got, err := s.GetTaskByID(ctx, synced.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateDeleted, got.SyncState)

	tasks, err := svc.All(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDeleteRemovesTagLinks(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	tag := testutil.SeedTag(t, s, "u1", "errands")
	created, err := svc.Add(ctx, "u1", "tagged", task.AddOptions{TagIDs: []string{tag.ID}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	tags, err := s.TagsForTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.Delete(context.Background(), "missing"))
}

func TestDeleteMany(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	a := testutil.SeedTask(t, s, "u1", "a", model.SyncStateNew, 1.0)
	b := testutil.SeedTask(t, s, "u1", "b", model.SyncStateSynced, 2.0)

	require.NoError(t, svc.DeleteMany(ctx, nil))
	require.NoError(t, svc.DeleteMany(ctx, []string{a.ID, b.ID}))

	_, err := s.GetTaskByID(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := s.GetTaskByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStateDeleted, got.SyncState)
}

func TestMoveBetweenRebalancesWhenGapExhausted(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	// Neighbors closer than the splittable gap.
	a := testutil.SeedTask(t, s, "u1", "a", model.SyncStateSynced, 1.0)
	b := testutil.SeedTask(t, s, "u1", "b", model.SyncStateSynced, 1.0000000001)
	c := testutil.SeedTask(t, s, "u1", "c", model.SyncStateSynced, 5.0)

	require.NoError(t, svc.MoveBetween(ctx, "u1", c.ID, a.ID, b.ID))

	gotA, err := s.GetTaskByID(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := s.GetTaskByID(ctx, b.ID)
	require.NoError(t, err)
	gotC, err := s.GetTaskByID(ctx, c.ID)
	require.NoError(t, err)

	// After the lazy rebalance, c sits strictly between a and b.
	assert.Greater(t, gotC.Position, gotA.Position)
	assert.Less(t, gotC.Position, gotB.Position)
}

func TestMoveBetweenEdges(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	a := testutil.SeedTask(t, s, "u1", "a", model.SyncStateSynced, 1.0)
	b := testutil.SeedTask(t, s, "u1", "b", model.SyncStateSynced, 2.0)

	// Move b ahead of a.
	require.NoError(t, svc.MoveBetween(ctx, "u1", b.ID, "", a.ID))
	gotB, err := s.GetTaskByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Less(t, gotB.Position, 1.0)

	// Append a after b's new spot and everything else.
	require.NoError(t, svc.MoveBetween(ctx, "u1", a.ID, b.ID, ""))
	gotA, err := s.GetTaskByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Greater(t, gotA.Position, gotB.Position)
}

func TestRebalanceAssignsIntegerSpacing(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	a := testutil.SeedTask(t, s, "u1", "a", model.SyncStateSynced, 0.1)
	b := testutil.SeedTask(t, s, "u1", "b", model.SyncStateSynced, 0.1000001)
	c := testutil.SeedTask(t, s, "u1", "c", model.SyncStateSynced, 0.2)

	require.NoError(t, svc.Rebalance(ctx, "u1"))

	for i, id := range []string{a.ID, b.ID, c.ID} {
		got, err := s.GetTaskByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, float64(i+1), got.Position)
		assert.Equal(t, model.SyncStatePending, got.SyncState)
	}
}

func TestToggleCompleteOptimisticRollsBack(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	synced := testutil.SeedTask(t, s, "u1", "flaky remote", model.SyncStateSynced, 1.0)

	commitErr := errors.New("remote unavailable")
	err := svc.ToggleCompleteOptimistic(ctx, synced.ID, "u1", true,
		func(context.Context) error { return commitErr })
	require.Error(t, err)
	assert.ErrorIs(t, err, commitErr)

	// The task is back to its prior state, including sync state.
	got, err := s.GetTaskByID(ctx, synced.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletedBy)
	assert.Equal(t, model.SyncStateSynced, got.SyncState)
}

func TestToggleCompleteOptimisticCommits(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	synced := testutil.SeedTask(t, s, "u1", "reliable remote", model.SyncStateSynced, 1.0)

	err := svc.ToggleCompleteOptimistic(ctx, synced.ID, "u1", true,
		func(context.Context) error { return nil })
	require.NoError(t, err)

	got, err := s.GetTaskByID(ctx, synced.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, model.SyncStatePending, got.SyncState)
}

func TestServicePublishesSnapshots(t *testing.T) {
	s := testutil.NewTestStore(t)
	pub := stats.NewPublisher()
	t.Cleanup(pub.Close)
	sub := pub.Subscribe()

	svc := task.New(s, nil, pub)

	_, err := svc.Add(context.Background(), "u1", "observed", task.AddOptions{})
	require.NoError(t, err)

	select {
	case snap := <-sub:
		assert.Equal(t, "u1", snap.UserID)
		require.Len(t, snap.Tasks, 1)
		assert.Equal(t, "observed", snap.Tasks[0].Text)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}
