/*
errors.go - Error taxonomy for the leave ledger

ERROR CATEGORIES:
  NotFound         account, ledger entry, absence, user or leave type missing
  AlreadyExists    duplicate account for (user, leave type), duplicate reference
  InvalidArgument  negative amount, malformed date, bad field value
  Precondition     approved absence without a leave account; fatal, not retried
  Internal         unexpected store failure or broken invariant

USAGE:
  Structured errors carry context and unwrap to the sentinels, so callers
  can branch with errors.Is and still render a precise message:

    if errors.Is(err, generic.ErrInvalidArgument) {
        var fe *generic.FieldError
        errors.As(err, &fe) // fe.Field, fe.Reason
    }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPrecondition means the data setup does not allow the operation.
	// The caller must abort its transaction rather than retry.
	ErrPrecondition = errors.New("failed precondition")

	ErrInternal = errors.New("internal error")

	// ErrStoreRequired is returned when an operation requires a specific store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string // "account", "ledger entry", "absence", "user", "leave type"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyExistsError names the conflicting key.
type AlreadyExistsError struct {
	Resource string
	Key      string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists for %s", e.Resource, e.Key)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// FieldError is a validation failure on one input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidArgument }

// PreconditionError explains which setup precondition failed.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "failed precondition: " + e.Reason }

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound)
}

// IsPrecondition returns true if the operation must be aborted, not retried.
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }
