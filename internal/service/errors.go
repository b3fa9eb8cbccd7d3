package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned by login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("Invalid login credentials")

// ValidationError is returned when input fails business validation.
// Fields carries per-field messages when the failure is attributable to one.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError is returned when an operation would break a business invariant,
// e.g. removing the last administrator.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// fieldError builds a ValidationError for a single field.
func fieldError(field, msg string) *ValidationError {
	return &ValidationError{
		Message: msg,
		Fields:  map[string][]string{field: {msg}},
	}
}

// notFound maps gorm's missing-record error onto ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to fetch %s: %w", what, err)
}
