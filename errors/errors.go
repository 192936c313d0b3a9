// Package errors defines the recoverable error taxonomy of the guidance core.
// Callers are expected to match with errors.Is; none of these are fatal to the
// service process.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("caller is not allowed to perform this operation")
	ErrInvalidTransition   = errors.New("invalid session transition")
	ErrConflict            = errors.New("concurrent update conflict")
	ErrSlotTaken           = errors.New("slot already taken")
	ErrPastSlot            = errors.New("slot is in the past")
	ErrOutsideAvailability = errors.New("slot outside agent availability")
	ErrSessionClosed       = errors.New("session no longer accepts messages")
	ErrTimeout             = errors.New("operation exceeded its time budget")
	ErrStoreUnavailable    = errors.New("record store unavailable")
	ErrWorkerPanic         = errors.New("worker panic")
)

// InvalidTransition wraps ErrInvalidTransition with the offending pair so the
// caller can tell the user exactly which move was rejected.
func InvalidTransition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Validation wraps ErrValidation with the underlying cause.
func Validation(cause error) error {
	return fmt.Errorf("%w: %v", ErrValidation, cause)
}

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
