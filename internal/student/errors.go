package student

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
)

type FieldError struct {
	Field string
	Rule  string
	Param string
}

func (f FieldError) String() string {
	switch f.Rule {
	case "required":
		return f.Field + " is required"
	case "email":
		return f.Field + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f.Field, f.Param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", f.Field, f.Param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", f.Field, f.Param)
	default:
		return fmt.Sprintf("%s is invalid (%s)", f.Field, f.Rule)
	}
}

// ValidationError is raised before any store interaction. Either Reason or
// Fields is set.
type ValidationError struct {
	Reason string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func newValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("export: %v", e.Err)
	}
	return fmt.Sprintf("export to %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
