// Package lferrors defines the small typed-error-kind taxonomy surfaced by
// every component of the engine. Callers switch on Kind; logs keep the full
// cause chain via github.com/pkg/errors.
package lferrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure the way callers need to react to it.
type Kind int

const (
	// UNKNOWN marks an invariant breach. It should never be returned in
	// a correctly functioning engine.
	UNKNOWN Kind = iota
	NOT_FOUND
	SYNTAX
	CONSTRAINT
	TYPE
	SCOPE
	STORE
	CANCELLED
)

func (k Kind) String() string {
	switch k {
	case NOT_FOUND:
		return "NOT_FOUND"
	case SYNTAX:
		return "SYNTAX"
	case CONSTRAINT:
		return "CONSTRAINT"
	case TYPE:
		return "TYPE"
	case SCOPE:
		return "SCOPE"
	case STORE:
		return "STORE"
	case CANCELLED:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type returned across package boundaries. It
// wraps an underlying cause (possibly nil) with a Kind and a message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Cause returns the root cause, matching github.com/pkg/errors' convention
// so %+v on a wrapped Error still prints a stack trace from the origin.
func (e *Error) Cause() error {
	if e.cause == nil {
		return e
	}
	return errors.Cause(e.cause)
}

// New creates a bare Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, capturing a stack trace at the
// wrap site (even when cause already carries one).
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return New(kind, format, args...)
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStack(cause),
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or UNKNOWN if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UNKNOWN
}
