package retry

import "errors"

// StatusOverloaded is the status code the remote model returns when it is overloaded.
const StatusOverloaded = 529

// KindOverloaded is the error kind the remote model reports when it is overloaded.
const KindOverloaded = "overloaded_error"

// Classification decides whether a failed attempt may be repeated.
type Classification int

// Classifications
const (
	Terminal Classification = iota
	Retryable
)

func (c Classification) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "terminal"
}

// Signal is implemented by remote-call errors that expose retry hints.
// The controller never looks at client-library error shapes directly.
type Signal interface {
	FailureKind() string
	StatusCode() int
	ShouldRetry() bool
}

// Classifier maps a failure to a Classification.
type Classifier func(err error) Classification

// Classify is the default classifier. A failure is retryable only when the
// remote side reports overload (status 529 or kind "overloaded_error") or
// explicitly asks for a retry. Rate limits (429) and transport errors are terminal.
func Classify(err error) Classification {
	var sig Signal
	if !errors.As(err, &sig) {
		return Terminal
	}
	if sig.StatusCode() == StatusOverloaded || sig.FailureKind() == KindOverloaded || sig.ShouldRetry() {
		return Retryable
	}
	return Terminal
}

// Describe extracts the error kind and status code for attempt records.
// Errors without a Signal are reported as kind "unknown".
func Describe(err error) (kind string, status int) {
	var sig Signal
	if errors.As(err, &sig) {
		kind = sig.FailureKind()
		status = sig.StatusCode()
	}
	if kind == "" {
		kind = "unknown"
	}
	return kind, status
}
