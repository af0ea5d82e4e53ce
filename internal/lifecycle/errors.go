package lifecycle

import (
	"fmt"

	"go.uber.org/multierr"
)

// CleanupError aggregates the removal failures of one ReleaseAll call.
// It is reported in logs only and never changes a request's outcome.
type CleanupError struct {
	RequestID string
	Cause     error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed for request %s: %d artifact(s) not removed: %v",
		e.RequestID, len(multierr.Errors(e.Cause)), e.Cause)
}

func (e *CleanupError) Unwrap() error {
	return e.Cause
}

// ReleasedError is returned when registering into a scope that has already been released.
type ReleasedError struct {
	RequestID string
}

func (e *ReleasedError) Error() string {
	return fmt.Sprintf("artifact scope for request %s is already released", e.RequestID)
}
