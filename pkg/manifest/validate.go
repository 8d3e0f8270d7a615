package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	schemasassets "github.com/quantfabric/batchflow/internal/assets/schemas"
)

// SchemaID is the schema identifier for job-set manifests.
const SchemaID = "batchflow/v1.0.0/jobset"

// Validation errors.
var (
	// ErrSchemaNotFound indicates the embedded schema is missing or empty.
	ErrSchemaNotFound = errors.New("manifest schema not found")

	// ErrValidationFailed indicates the manifest failed schema validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

// Cached schema instance (compiled once from the embedded document).
var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g. "/jobs/0/priority").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// ValidateRaw checks raw JSON data against the job-set schema.
//
// The raw JSON preserves all fields from the original input, so unknown
// fields are rejected (additionalProperties: false) instead of being
// silently dropped by struct unmarshaling.
func ValidateRaw(jsonData []byte) error {
	s, err := getSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("invalid JSON in manifest: %w", err)
	}

	err = s.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema validation error: %w", err)
	}

	errs := flattenValidation(ve)
	if len(errs) == 0 {
		errs = ValidationErrors{{Message: ve.Message}}
	}
	return errs
}

// flattenValidation collects the leaf causes of a validation error tree.
func flattenValidation(ve *jsonschema.ValidationError) ValidationErrors {
	if len(ve.Causes) == 0 {
		return ValidationErrors{{
			Path:    ve.InstanceLocation,
			Message: ve.Message,
		}}
	}

	var errs ValidationErrors
	for _, cause := range ve.Causes {
		errs = append(errs, flattenValidation(cause)...)
	}
	return errs
}

// getSchema returns the cached schema compiled from the embedded document.
func getSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		if len(schemasassets.JobSetSchema) == 0 {
			schemaErr = fmt.Errorf("%w: embedded jobset schema is empty", ErrSchemaNotFound)
			return
		}
		schema, schemaErr = jsonschema.CompileString(SchemaID, string(schemasassets.JobSetSchema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile manifest schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}
