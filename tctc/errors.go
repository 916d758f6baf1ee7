package tctc

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// Sentinel errors. Callers branch with errors.Is; the structured types below
// wrap these so both the category and the detail survive.
var (
	// ErrLimitExceeded means a proposed package total breaches the fixed
	// cost ceiling. The change is rejected, nothing is persisted.
	ErrLimitExceeded = errors.New("package limit exceeded")

	// ErrAlreadySubmitted means a mutation was attempted on a SUBMITTED
	// package through the normal change path. Deliberately distinct from
	// ErrLimitExceeded: "your budget is blown" and "this package is locked"
	// demand different caller reactions.
	ErrAlreadySubmitted = errors.New("package already submitted")

	// ErrMalformedValue means a proposed change carried a value the field
	// cannot hold (non-numeric or negative for a monetary field).
	ErrMalformedValue = errors.New("malformed component value")

	// ErrPackageNotFound means the store has no package for the employee.
	ErrPackageNotFound = errors.New("package not found")
)

// LimitExceededError reports exactly how far over the ceiling the attempted
// total landed, so the caller can surface both figures without re-deriving
// them.
type LimitExceededError struct {
	Attempted decimal.Decimal
	Limit     decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("package limit exceeded: attempted total %s over limit %s",
		e.Attempted.StringFixed(2), e.Limit.StringFixed(2))
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

// Exceeded returns the amount by which the attempted total overshoots.
func (e *LimitExceededError) Exceeded() decimal.Decimal {
	return e.Attempted.Sub(e.Limit)
}

// MalformedValueError names the offending field and echoes the rejected
// value.
type MalformedValueError struct {
	Field string
	Value any
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed value %v for field %q", e.Value, e.Field)
}

func (e *MalformedValueError) Unwrap() error { return ErrMalformedValue }

// IsClientError reports whether err is caused by the caller's input rather
// than by the engine or its storage. Client errors are safe to surface
// verbatim.
func IsClientError(err error) bool {
	return errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrMalformedValue)
}
