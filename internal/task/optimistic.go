package task

import (
	"context"
	"fmt"
)

// RunOptimistic applies a local mutation, attempts the remote commit, and
// replays the inverse mutation if the commit fails. It generalizes the
// apply/commit/compensate pattern so each call site does not carry its
// own ad hoc rollback code.
//
// If both the commit and the compensation fail, the compensation error is
// attached to the returned commit error and the local state is left
// inconsistent with the remote; the caller decides how to surface that.
func RunOptimistic(ctx context.Context, apply, commit, compensate func(context.Context) error) error {
	if err := apply(ctx); err != nil {
		return fmt.Errorf("applying local mutation: %w", err)
	}

	if err := commit(ctx); err != nil {
		if rbErr := compensate(ctx); rbErr != nil {
			return fmt.Errorf("commit failed: %w (rollback also failed: %v)", err, rbErr)
		}
		return fmt.Errorf("commit failed, local change rolled back: %w", err)
	}

	return nil
}
