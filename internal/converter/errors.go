package converter

import (
	"errors"
	"fmt"
)

// Common normalization errors
var (
	// ErrMalformedXML is returned when the file content is not well-formed XML.
	ErrMalformedXML = errors.New("malformed XML document")

	// ErrUnrecognizedDocument is returned when the root element is neither a
	// Comprobante nor a Retenciones document.
	ErrUnrecognizedDocument = errors.New("unrecognized document type")

	// ErrMissingRequiredField is returned when the stamp UUID, the issuer or
	// the receiver is absent.
	ErrMissingRequiredField = errors.New("missing required field")
)

// ProcessingError wraps errors with context about the file that failed.
type ProcessingError struct {
	// Op is the step that failed (e.g., "parse", "validate").
	Op string

	// Path is the source file, relative to the input root.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("converter: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("converter: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ProcessingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newProcessingError(op, path string, err error) *ProcessingError {
	return &ProcessingError{Op: op, Path: path, Err: err}
}
