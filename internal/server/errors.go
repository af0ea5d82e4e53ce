package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/cv-generator/internal/pipeline"
)

// ErrValidation indicates a malformed form field
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrTooLarge indicates the upload exceeded the configured size
type ErrTooLarge struct {
	Limit int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("request body larger than %d bytes", e.Limit)
}

var kindStatus = map[pipeline.Kind]int{
	pipeline.KindInvalidInput:      http.StatusBadRequest,
	pipeline.KindUnsupportedFormat: http.StatusUnsupportedMediaType,
	pipeline.KindExtractionFailed:  http.StatusUnprocessableEntity,
	pipeline.KindRemoteCallFailed:  http.StatusBadGateway,
	pipeline.KindRetryExhausted:    http.StatusServiceUnavailable,
	pipeline.KindMalformedResponse: http.StatusBadGateway,
	pipeline.KindIncompleteProfile: http.StatusBadGateway,
	pipeline.KindRenderFailed:      http.StatusInternalServerError,
	pipeline.KindInternal:          http.StatusInternalServerError,
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validation *ErrValidation
	var tooLarge *ErrTooLarge
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	}
	if f, ok := pipeline.AsFailure(err); ok {
		if status, ok := kindStatus[f.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// errorBody is the JSON shape of every failed request
type errorBody struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId"`
}

// describe returns the user-facing message and details for err.
// Only pipeline failures and form errors carry text that is safe to show.
func describe(err error) (string, string) {
	if f, ok := pipeline.AsFailure(err); ok {
		return f.Message, f.Detail
	}
	var validation *ErrValidation
	if errors.As(err, &validation) {
		return "Invalid request", validation.Field + ": " + validation.Message
	}
	var tooLarge *ErrTooLarge
	if errors.As(err, &tooLarge) {
		return "File too large", fmt.Sprintf("uploads are limited to %d bytes", tooLarge.Limit)
	}
	return "Error while processing the CV", "unexpected error"
}
