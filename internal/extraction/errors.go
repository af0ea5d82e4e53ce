package extraction

import "fmt"

// UnsupportedFormatError is returned for formats outside the supported set.
// No extractor runs when it is returned.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return "unsupported document format: no extension"
	}
	return fmt.Sprintf("unsupported document format: %q", e.Format)
}

// Error wraps a failing extractor.
type Error struct {
	Format  Format
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s extraction failed: %s: %v", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s extraction failed: %s", e.Format, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// EmptyTextError means the document was readable but produced no text.
type EmptyTextError struct {
	Format Format
}

func (e *EmptyTextError) Error() string {
	return fmt.Sprintf("no text could be extracted from %s document", e.Format)
}
