package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ash-bergs/localtask/internal/server"
)

func newTestServer(t *testing.T) (*server.Server, *server.Store) {
	t.Helper()

	st, err := server.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("closing server store: %v", err)
		}
	})

	return server.New(st), st
}

func record(id, userID, text string, position float64) server.TaskRecord {
	now := time.Now().UTC()
	return server.TaskRecord{
		ID:        id,
		UserID:    userID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
		Position:  position,
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestSyncRejectsMissingUserID(t *testing.T) {
	srv, st := newTestServer(t)

	w := postJSON(t, srv, "/api/sync", map[string]interface{}{
		"newTasks": []server.TaskRecord{record("t1", "u1", "sneaky", 1.0)},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "userId")

	// Rejected before any mutation.
	tasks, err := st.Tasks(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSyncAppliesBatch(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	// Seed an existing row to update and one to delete.
	require.NoError(t, st.ApplyBatch(ctx, "u1",
		[]server.TaskRecord{
			record("keep", "u1", "old text", 1.0),
			record("drop", "u1", "doomed", 2.0),
		}, nil, nil))

	updated := record("keep", "u1", "new text", 1.5)
	w := postJSON(t, srv, "/api/sync", map[string]interface{}{
		"userId":       "u1",
		"newTasks":     []server.TaskRecord{record("fresh", "u1", "brand new", 3.0)},
		"updatedTasks": []server.TaskRecord{updated},
		"deletedTasks": []server.TaskRecord{record("drop", "u1", "doomed", 2.0)},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["message"])

	tasks, err := st.Tasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "keep", tasks[0].ID)
	assert.Equal(t, "new text", tasks[0].Text)
	assert.Equal(t, 1.5, tasks[0].Position)
	assert.Equal(t, "fresh", tasks[1].ID)
}

func TestSyncDeleteUnknownIDIsNoOp(t *testing.T) {
	srv, st := newTestServer(t)

	// A client may tombstone a task whose original push never landed.
	w := postJSON(t, srv, "/api/sync", map[string]interface{}{
		"userId":       "u1",
		"deletedTasks": []server.TaskRecord{record("never-pushed", "u1", "ghost", 1.0)},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	tasks, err := st.Tasks(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSyncBatchIsAtomic(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.ApplyBatch(ctx, "u1",
		[]server.TaskRecord{record("existing", "u1", "already here", 1.0)}, nil, nil))

	// The empty-text insert fails the whole batch; the valid insert and
	// the delete in the same batch must not land.
	w := postJSON(t, srv, "/api/sync", map[string]interface{}{
		"userId": "u1",
		"newTasks": []server.TaskRecord{
			record("fresh", "u1", "fine on its own", 2.0),
			record("blank", "u1", "", 3.0),
		},
		"deletedTasks": []server.TaskRecord{record("existing", "u1", "already here", 1.0)},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	tasks, err := st.Tasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "existing", tasks[0].ID)
	assert.Equal(t, "already here", tasks[0].Text)
}

func TestSyncRetryOfConfirmedBatchSucceeds(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	// A client whose confirmation response was lost resubmits the same
	// batch. The retry must land cleanly, not wedge on the existing row.
	batch := map[string]interface{}{
		"userId":   "u1",
		"newTasks": []server.TaskRecord{record("t1", "u1", "survives retry", 1.0)},
	}

	w := postJSON(t, srv, "/api/sync", batch)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, srv, "/api/sync", batch)
	assert.Equal(t, http.StatusOK, w.Code)

	tasks, err := st.Tasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, "survives retry", tasks[0].Text)
}

func TestSyncRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sync", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTagsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// Missing userId on GET.
	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Create two tags.
	w = postJSON(t, srv, "/api/tags", map[string]string{
		"name": "work", "color": "#ff0000", "userId": "u1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, srv, "/api/tags", map[string]string{
		"name": "home", "userId": "u1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate name for the same user is rejected.
	w = postJSON(t, srv, "/api/tags", map[string]string{
		"name": "work", "userId": "u1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Same name for another user is fine.
	w = postJSON(t, srv, "/api/tags", map[string]string{
		"name": "work", "userId": "u2",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Listing returns the user's tags ordered by name.
	req = httptest.NewRequest(http.MethodGet, "/api/tags?userId=u1", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var tags []server.TagRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tags))
	require.Len(t, tags, 2)
	assert.Equal(t, "home", tags[0].Name)
	assert.Equal(t, "work", tags[1].Name)
}

func TestCreateTagValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/tags", map[string]string{"name": "orphaned"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, srv, "/api/tags", map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
