package model

import (
	"fmt"
	"time"
)

// SyncState records where a locally stored task stands relative to the
// remote system of record.
type SyncState string

const (
	// SyncStateNew marks a task created locally that the server has
	// never seen.
	SyncStateNew SyncState = "new"

	// SyncStatePending marks a previously synced task that has been
	// mutated locally since the last successful sync.
	SyncStatePending SyncState = "pending"

	// SyncStateSynced marks a task confirmed by the server. Any local
	// mutation moves it back to pending.
	SyncStateSynced SyncState = "synced"

	// SyncStateDeleted marks a task awaiting remote deletion. The row is
	// purged locally after the next successful sync round-trip.
	SyncStateDeleted SyncState = "deleted"
)

// Valid reports whether s is one of the four defined sync states.
func (s SyncState) Valid() bool {
	switch s {
	case SyncStateNew, SyncStatePending, SyncStateSynced, SyncStateDeleted:
		return true
	}
	return false
}

// ParseSyncState converts a stored string into a SyncState, rejecting
// anything outside the closed set.
func ParseSyncState(raw string) (SyncState, error) {
	s := SyncState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid sync state %q", raw)
	}
	return s, nil
}

// Task is a user-owned todo item held in the local store.
type Task struct {
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

	// SyncState is client-local bookkeeping. It is stripped from task
	// payloads before they are sent to the server.
	SyncState SyncState `json:"syncState" db:"sync_state"`

	// Tags is populated by queries that join with task_tags.
	Tags []Tag `json:"tags" db:"-"`
}
