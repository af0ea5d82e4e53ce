package types

import "time"

// AttemptOutcome is the result of one remote-call try
type AttemptOutcome string

// Attempt outcomes
const (
	AttemptSuccess AttemptOutcome = "success"
	AttemptFailure AttemptOutcome = "failure"
)

// AttemptRecord logs one try of a remote call.
type AttemptRecord struct {
	Number         int            `json:"number"` // 1-based
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        time.Time      `json:"ended_at"`
	Outcome        AttemptOutcome `json:"outcome"`
	Classification string         `json:"classification,omitempty"` // "retryable" or "terminal" on failure
	ErrorKind      string         `json:"error_kind,omitempty"`
	StatusCode     int            `json:"status_code,omitempty"`
	Delay          time.Duration  `json:"delay,omitempty"` // backoff scheduled after this attempt
}

// Duration returns how long the attempt took.
func (a AttemptRecord) Duration() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}
