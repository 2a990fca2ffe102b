package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist, is soft-deleted,
	// or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique record is created twice.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden is returned when the caller may not touch the record.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError describes a request that failed field validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
