package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/cv-generator/internal/extraction"
	"github.com/jonathan/cv-generator/internal/fetch"
	"github.com/jonathan/cv-generator/internal/parsing"
	"github.com/jonathan/cv-generator/internal/rendering"
	"github.com/jonathan/cv-generator/internal/retry"
	"github.com/jonathan/cv-generator/internal/types"
)

// Kind identifies the category of a request failure.
type Kind string

// Failure kinds
const (
	KindInvalidInput      Kind = "invalid_input"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindExtractionFailed  Kind = "extraction_failed"
	KindRemoteCallFailed  Kind = "remote_call_failed"
	KindRetryExhausted    Kind = "retry_exhausted"
	KindMalformedResponse Kind = "malformed_response"
	KindIncompleteProfile Kind = "incomplete_profile"
	KindRenderFailed      Kind = "render_failed"
	KindInternal          Kind = "internal"
)

// Failure is the only error type Process returns.
// Message and Detail are safe to show to callers; Cause is for logs.
type Failure struct {
	Kind      Kind
	Stage     Stage
	RequestID string
	Elapsed   time.Duration
	Message   string
	Detail    string
	Retryable bool
	Attempts  []types.AttemptRecord
	Cause     error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", f.Kind, f.Stage, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s at %s: %s", f.Kind, f.Stage, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func invalidInput(stage Stage, detail string, cause error) *Failure {
	return &Failure{
		Kind:    KindInvalidInput,
		Stage:   stage,
		Message: "Invalid request",
		Detail:  detail,
		Cause:   cause,
	}
}

func internalFailure(stage Stage, cause error) *Failure {
	return &Failure{
		Kind:    KindInternal,
		Stage:   stage,
		Message: "Internal error while processing the CV",
		Detail:  "the request could not be completed, please try again",
		Cause:   cause,
	}
}

// extractionFailure maps an extraction or fetch error.
func extractionFailure(stage Stage, subject string, err error) *Failure {
	var unsupported *extraction.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		return &Failure{
			Kind:    KindUnsupportedFormat,
			Stage:   stage,
			Message: "Unsupported file format",
			Detail:  fmt.Sprintf("%s must be one of: %s", subject, supportedList()),
			Cause:   err,
		}
	}

	f := &Failure{
		Kind:    KindExtractionFailed,
		Stage:   stage,
		Message: "Could not read the " + subject,
		Cause:   err,
	}
	var empty *extraction.EmptyTextError
	var fetchErr *fetch.Error
	switch {
	case errors.As(err, &empty):
		f.Detail = fmt.Sprintf("no text found in the %s document", empty.Format)
	case errors.As(err, &fetchErr):
		f.Detail = fetchErr.Message
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		f.Detail = "reading the document took too long"
	default:
		f.Detail = "the document could not be parsed"
	}
	return f
}

// remoteFailure maps an error returned by the retry controller.
func remoteFailure(err error) *Failure {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return &Failure{
			Kind:      KindRetryExhausted,
			Stage:     StageRemoteCall,
			Message:   "The AI service is overloaded",
			Detail:    fmt.Sprintf("gave up after %d attempts, please try again later", exhausted.Attempts),
			Retryable: true,
			Cause:     err,
		}
	}

	f := &Failure{
		Kind:    KindRemoteCallFailed,
		Stage:   StageRemoteCall,
		Message: "The AI service request failed",
		Cause:   err,
	}
	var aborted *retry.AbortedError
	switch {
	case errors.As(err, &aborted):
		f.Retryable = true
		f.Detail = fmt.Sprintf("stopped after %d attempts: no response in time", aborted.Attempts)
	case errors.Is(err, context.DeadlineExceeded):
		f.Retryable = true
		f.Detail = "no response in time"
	default:
		f.Retryable = retry.Classify(err) == retry.Retryable
		kind, status := retry.Describe(err)
		if status != 0 {
			f.Detail = fmt.Sprintf("%s (status %d)", kind, status)
		} else {
			f.Detail = kind
		}
	}
	return f
}

func validationFailure(err error) *Failure {
	var incomplete *parsing.IncompleteProfileError
	if errors.As(err, &incomplete) {
		return &Failure{
			Kind:    KindIncompleteProfile,
			Stage:   StageValidate,
			Message: "The AI response is missing required CV fields",
			Detail:  "missing: " + strings.Join(incomplete.Missing, ", "),
			Cause:   err,
		}
	}

	f := &Failure{
		Kind:    KindMalformedResponse,
		Stage:   StageValidate,
		Message: "The AI response could not be understood",
		Detail:  "the response was not a valid CV profile",
		Cause:   err,
	}
	var malformed *parsing.MalformedResponseError
	if errors.As(err, &malformed) {
		f.Detail = malformed.Message
	}
	return f
}

func renderFailure(err error) *Failure {
	f := &Failure{
		Kind:    KindRenderFailed,
		Stage:   StageRender,
		Message: "Could not generate the CV document",
		Detail:  "document rendering failed",
		Cause:   err,
	}
	var tmpl *rendering.TemplateError
	var rerr *rendering.RenderError
	switch {
	case errors.As(err, &tmpl):
		f.Detail = "document template is unavailable"
	case errors.As(err, &rerr):
		f.Detail = rerr.Message
	}
	return f
}

func supportedList() string {
	formats := extraction.SupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
