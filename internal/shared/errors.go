package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies ledger-core failures.
type ErrorKind string

const (
	// KindValidation covers malformed input, insufficient stock and broken invariants.
	KindValidation ErrorKind = "VALIDATION"
	// KindNotFound indicates a referenced fabric, batch, transaction or supplier is absent.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindConflict indicates a batch lock could not be acquired.
	KindConflict ErrorKind = "CONFLICT"
	// KindPermission is reserved for the outer layers; the core never produces it.
	KindPermission ErrorKind = "PERMISSION"
)

// Error carries an error kind plus structured context for diagnostics.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Meta map[string]any
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// With attaches a context value and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// NewError builds a structured Error.
func NewError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// WrapError builds a structured Error around a cause.
func WrapError(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" when err is not a shared.Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a VALIDATION failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a NOT_FOUND failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a CONFLICT failure.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
