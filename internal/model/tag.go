package model

import "time"

// Tag is a user-owned label for categorizing tasks. Tags form a tree via
// ParentID; root tags have a nil parent.
type Tag struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	UserID    string    `json:"userId" db:"user_id"`
	ParentID  *string   `json:"parentId,omitempty" db:"parent_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TaskTag links a task to a tag. The pair is unique and the row's
// lifecycle is bound to both sides: deleting either the task or the tag
// removes the link.
type TaskTag struct {
	TaskID string `json:"taskId" db:"task_id"`
	TagID  string `json:"tagId" db:"tag_id"`
}
