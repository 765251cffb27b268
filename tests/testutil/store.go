package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ash-bergs/localtask/internal/model"
	"github.com/ash-bergs/localtask/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// MakeTask builds a valid task for userID with the given sync state and
// position.
func MakeTask(userID, text string, state model.SyncState, position float64) model.Task {
	now := time.Now().UTC()
	return model.Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
		Position:  position,
		SyncState: state,
	}
}

// SeedTask inserts a task built by MakeTask and returns it.
func SeedTask(t *testing.T, s *store.SQLiteStore, userID, text string, state model.SyncState, position float64) model.Task {
	t.Helper()

	task := MakeTask(userID, text, state, position)
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

// SeedTag inserts a tag for userID and returns it.
func SeedTag(t *testing.T, s *store.SQLiteStore, userID, name string) model.Tag {
	t.Helper()

	tag := model.Tag{
		ID:        uuid.New().String(),
		Name:      name,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateTag(context.Background(), tag))
	return tag
}
