package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes callers need to tell apart
var (
	// ErrNotFound indicates an item does not exist or belongs to another owner
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input; nothing was applied
	ErrValidation = errors.New("validation failed")

	// ErrPersistence indicates the store failed; the operation was not applied
	ErrPersistence = errors.New("persistence failure")

	// ErrInvariantViolation indicates a reorder produced an inconsistent position set
	ErrInvariantViolation = errors.New("invariant violation")
)

// Validationf returns an ErrValidation with a formatted reason
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence wraps a store error as ErrPersistence. Errors that already carry
// one of the sentinels are returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPersistence) || errors.Is(err, ErrInvariantViolation) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
}
