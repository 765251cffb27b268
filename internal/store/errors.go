package store

import (
	"errors"
	"strings"
)

// Sentinel errors returned by store operations. Callers match them with
// errors.Is.
var (
	// ErrNotFound indicates the referenced id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey indicates an insert collided with an existing
	// primary key or unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrWrite indicates the underlying storage write failed.
	ErrWrite = errors.New("storage write failed")
)

// isConstraintViolation reports whether err is a SQLite unique or primary
// key constraint failure. modernc.org/sqlite surfaces these as plain
// errors carrying the SQLITE_CONSTRAINT message text.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
