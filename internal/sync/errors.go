package sync

import (
	"errors"
	"fmt"
)

// SyncError indicates the remote batch request did not complete
// successfully. No local state was mutated; the whole batch must be
// retried later.
type SyncError struct {
	UserID string
	Cause  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed for user %s: %v", e.UserID, e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// IsSyncFailed reports whether err (or any error in its chain) is a
// SyncError.
func IsSyncFailed(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr)
}
