package matching

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrExecutionInProgress = errors.New("a match execution is already running for this demand version")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field string `json:"campo"`
	Rule  string `json:"regra"`
}

// ValidationError is returned for malformed scoring input, before any scoring runs.
type ValidationError struct {
	Fields []FieldError
	msg    string
}

func (e *ValidationError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return "invalid match context: " + strings.Join(parts, ", ")
}

// NewValidationError builds a ValidationError from a plain message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{msg: err.Error()}
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	return out
}

// ExecutionError wraps the cause of a failed run together with the execution that recorded it.
type ExecutionError struct {
	ExecutionID int
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("match execution %d failed: %v", e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
