package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, human-facing message, and underlying error.
// It is used for source I/O and transport failures.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ValidationError reports a plan or parameter outside its declared domain.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// NewValidationError constructs a ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedIntentError signals a question outside the supported vocabulary.
type UnsupportedIntentError struct {
	Question string
	Reason   string
}

func (e *UnsupportedIntentError) Error() string {
	if e.Reason == "" {
		return "unsupported intent"
	}
	return "unsupported intent: " + e.Reason
}

// StructuralExecutionError reports a plan that references an unknown step kind or operation.
type StructuralExecutionError struct {
	Step int
	Msg  string
}

func (e *StructuralExecutionError) Error() string {
	return fmt.Sprintf("step %d: %s", e.Step, e.Msg)
}

// UpstreamPlannerError wraps a language model failure. It never leaves the planner selector.
type UpstreamPlannerError struct {
	Reason string
	Err    error
}

func (e *UpstreamPlannerError) Error() string {
	if e.Err == nil {
		return "llm planner: " + e.Reason
	}
	return fmt.Sprintf("llm planner: %s: %v", e.Reason, e.Err)
}

func (e *UpstreamPlannerError) Unwrap() error {
	return e.Err
}

// ConfigurationError aborts a dataset build.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "configuration: " + e.Msg
	}
	return fmt.Sprintf("configuration: %s: %v", e.Msg, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ErrDatasetNotLoaded is returned when a query arrives before the first successful load.
var ErrDatasetNotLoaded = errors.New("dataset not loaded")

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUnsupported reports whether err carries an UnsupportedIntentError.
func IsUnsupported(err error) bool {
	var u *UnsupportedIntentError
	return errors.As(err, &u)
}

// IsStructural reports whether err carries a StructuralExecutionError.
func IsStructural(err error) bool {
	var s *StructuralExecutionError
	return errors.As(err, &s)
}

// IsConfiguration reports whether err carries a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}
