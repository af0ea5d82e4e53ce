package llm

import "fmt"

// APIError is a failed remote call that reached the provider. It carries the
// hints the retry controller classifies on (it implements retry.Signal).
type APIError struct {
	Provider Provider
	Status   int    // HTTP status, 0 if unknown
	Kind     string // provider error type, e.g. "overloaded_error"
	Message  string
	Retry    bool // provider explicitly asked for a retry
	Cause    error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error", e.Provider)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Kind != "" {
		msg += ": " + e.Kind
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// FailureKind returns the provider error type
func (e *APIError) FailureKind() string { return e.Kind }

// StatusCode returns the HTTP status of the failed call
func (e *APIError) StatusCode() int { return e.Status }

// ShouldRetry reports the provider's explicit retry hint
func (e *APIError) ShouldRetry() bool { return e.Retry }

// ResponseError means the provider answered successfully but the reply had no usable text.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unusable model response: %s", e.Message)
}
