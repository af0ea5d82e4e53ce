package parsing

import (
	"fmt"
	"strings"
)

// MalformedResponseError means the model reply was empty or not a JSON object
// of the expected shape. Excerpt holds the start of the reply for logs only.
type MalformedResponseError struct {
	Message string
	Excerpt string
	Cause   error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed model response: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed model response: %s", e.Message)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// IncompleteProfileError means the reply parsed but lacks required fields
type IncompleteProfileError struct {
	Missing []string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("incomplete profile: missing %s", strings.Join(e.Missing, ", "))
}
