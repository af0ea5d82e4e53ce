package retry

import "fmt"

// ExhaustedError is returned when every attempt in the budget failed with a
// retryable classification. Unwrap yields the last failure unchanged.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// AbortedError is returned when the context ends during a backoff delay.
type AbortedError struct {
	Attempts int
	Last     error
	Cause    error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("retry aborted after %d attempts: %v (last failure: %v)", e.Attempts, e.Cause, e.Last)
}

// Unwrap exposes both the context error and the last remote failure.
func (e *AbortedError) Unwrap() []error {
	return []error{e.Cause, e.Last}
}
