// Package rendering hands a validated profile to the external document renderer.
package rendering

import "fmt"

// TemplateError means the document template could not be used
type TemplateError struct {
	Path    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("template error: %s", e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RenderError represents a failed render. Stderr is kept for logs and never shown to users.
type RenderError struct {
	Message  string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
