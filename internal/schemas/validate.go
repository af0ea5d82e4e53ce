// Package schemas holds the embedded JSON Schemas for structured artifacts and validates documents against them.
package schemas

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// CandidateProfile is the schema for the model's structured CV reply.
const CandidateProfile = "candidate_profile.schema.json"

//go:embed *.schema.json
var schemaFiles embed.FS

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.Mutex
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Type    string // gojsonschema error type, e.g. "required", "invalid_type"
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// MissingRequired returns the sorted names of required properties reported missing at the document root.
func (ve *ValidationError) MissingRequired() []string {
	var missing []string
	for _, fe := range ve.Errors {
		if fe.Type == "required" && fe.Field != "" && !strings.Contains(fe.Field, ".") {
			missing = append(missing, fe.Field)
		}
	}
	sort.Strings(missing)
	return missing
}

// OnlyMissingRequired reports whether every error is a missing root property.
func (ve *ValidationError) OnlyMissingRequired() bool {
	return len(ve.Errors) > 0 && len(ve.MissingRequired()) == len(ve.Errors)
}

// Load returns the compiled embedded schema, compiling it on first use.
func Load(name string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}

	data, err := schemaFiles.ReadFile(name)
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "schema not embedded", Cause: err}
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "invalid schema", Cause: err}
	}
	compiled[name] = s
	return s, nil
}

// Validate checks a JSON document against the named embedded schema
func Validate(name string, document []byte) error {
	schema, err := Load(name)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		// for "required" the reported field is the parent; name the missing property instead
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				if field == "(root)" || field == "" {
					field = prop
				} else {
					field = field + "." + prop
				}
			}
		}
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Type:    desc.Type(),
			Message: desc.Description(),
		})
	}
	return validationErr
}
