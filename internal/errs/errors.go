// Package errs provides the error type shared by the registry, the schema
// model, the engine and the drivers.
//
// Every layer wraps its failures into *errs.Error so callers can branch on
// the kind of failure without parsing messages:
//
//	if errs.IsNotEmpty(err) {
//	    // copy target already holds rows
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // unknown relation, column or type
	ErrKindInvalidInput             // bad arguments, schema drift
	ErrKindModeling                 // self alias, foreign key arity, foreign table without primary key
	ErrKindNotEmpty                 // copy target holds rows
	ErrKindPrecondition             // missing foreign table, missing source, truncate batch rule
	ErrKindQueryFailed              // statement execution
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindUnsupported              // operation not supported for the object kind or dialect
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindModeling:
		return "modeling"
	case ErrKindNotEmpty:
		return "not_empty"
	case ErrKindPrecondition:
		return "precondition"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across db-relay.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Wrapf is Wrap with a format string.
func Wrapf(kind ErrKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// --- Predicates ---

func IsNotFound(err error) bool { return KindOf(err) == ErrKindNotFound }
func IsInvalidInput(err error) bool { return KindOf(err) == ErrKindInvalidInput }
func IsModeling(err error) bool { return KindOf(err) == ErrKindModeling }
func IsNotEmpty(err error) bool { return KindOf(err) == ErrKindNotEmpty }
func IsPrecondition(err error) bool { return KindOf(err) == ErrKindPrecondition }
func IsQueryFailed(err error) bool { return KindOf(err) == ErrKindQueryFailed }
func IsConnectionFailed(err error) bool { return KindOf(err) == ErrKindConnectionFailed }
func IsUnsupported(err error) bool { return KindOf(err) == ErrKindUnsupported }

// KindOf extracts the ErrKind of the first *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
