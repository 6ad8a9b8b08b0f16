package tourbook

import (
	"errors"
	"strings"
)

// Sentinel errors for the tourbook domain.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrNetwork    = errors.New("network failure")
	ErrStorage    = errors.New("storage failure")
	ErrInternal   = errors.New("internal error")
)

// ValidationError describes rejected input. It unwraps to ErrValidation.
type ValidationError struct {
	Message string
	Details []FieldError
}

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = d.Field + ": " + d.Message
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
