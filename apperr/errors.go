// Package apperr defines the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidReference = errors.New("invalid reference")
	ErrConflict         = errors.New("conflict")

	// ErrInvalidCredentials and ErrAuthNotFound are kept apart for logging;
	// callers see one message for both.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthNotFound       = errors.New("account not found")

	// ErrTransient marks lock contention or serialization failures that
	// outlived the transaction retry budget.
	ErrTransient = errors.New("transaction failed")
)

func NotFound(entity string, id uint) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// InvalidReference is a NotFound raised for an id carried in a request body.
// It matches both sentinels; the HTTP layer checks it first and answers 400.
func InvalidReference(entity string, id uint) error {
	return fmt.Errorf("%s %d: %w (%w)", entity, id, ErrInvalidReference, ErrNotFound)
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// ValidationError carries field-level detail for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
