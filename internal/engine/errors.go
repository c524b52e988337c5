package engine

import (
	"errors"
	"fmt"
)

// Predefined errors for the engine's caller-facing API. NotFound and
// ambiguity are expected outcomes, never logged as failures; dependency
// errors trigger graceful degradation wherever a degraded answer exists.
var (
	// ErrNotFound indicates that no entity or memory matches a required
	// lookup.
	ErrNotFound = errors.New("not found")

	// ErrConflictPending indicates that a write is blocked awaiting
	// resolution of an earlier conflict on the same entity and attribute
	// category. Unrelated writes for other entities proceed.
	ErrConflictPending = errors.New("conflict resolution pending")

	// ErrValidation indicates that a confidence value or another
	// invariant is out of range.
	ErrValidation = errors.New("validation failed")

	// ErrDependencyUnavailable indicates that the similarity provider or
	// durable store is unreachable and no degraded path exists for the
	// requested operation.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// OpError wraps errors with the name of the engine operation that failed.
type OpError struct {
	// Op is the name of the operation (e.g. "ResolveEntity").
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns "recall: <Op>: <Err>".
func (e *OpError) Error() string {
	return fmt.Sprintf("recall: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As work
// through OpError.
func (e *OpError) Unwrap() error {
	return e.Err
}

// opErr wraps err with operation context, or returns nil if err is nil.
func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
