// Package common defines shared constants and sentinel errors used across
// storage, service and transport layers of pwkeeper. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable wraps any persistence failure that is not a
	// not-found or uniqueness outcome.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Service-level errors.
	ErrValidation         = errors.New("validation error")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactiveUser       = errors.New("inactive user")
	ErrInternal           = errors.New("internal error")

	// Token errors. Every specific failure below matches ErrInvalidToken.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenMalformed      = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenSignature      = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	ErrTokenExpired        = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenMissingSubject = fmt.Errorf("%w: missing subject", ErrInvalidToken)
	ErrTokenWrongType      = fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	ErrSessionRevoked      = fmt.Errorf("%w: session revoked or expired", ErrInvalidToken)
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports ValidationError as an ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand used by input checks.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
