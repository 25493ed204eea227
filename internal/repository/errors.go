package repository

import (
	"errors"
	"fmt"
)

var (
	// Common errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Security event errors
	ErrSecurityEventNotFound = errors.New("security event not found")
	ErrAlreadyResolved       = errors.New("security event already resolved")
)

// DuplicateError reports a unique constraint violation on Field
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

// Unwrap lets errors.Is(err, ErrConflict) match
func (e *DuplicateError) Unwrap() error {
	return ErrConflict
}
