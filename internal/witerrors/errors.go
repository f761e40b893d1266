// Package witerrors provides the categorised error taxonomy shared by every
// component of the codec and typed store.
package witerrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from the error taxonomy.
type Kind string

const (
	IdlParseError              Kind = "IDL_PARSE_ERROR"
	TypeNotFound               Kind = "TYPE_NOT_FOUND"
	UnsupportedKind            Kind = "UNSUPPORTED_KIND"
	KeyspaceExists             Kind = "KEYSPACE_EXISTS"
	KeyspaceNotFound           Kind = "KEYSPACE_NOT_FOUND"
	KeyNotFound                Kind = "KEY_NOT_FOUND"
	KeyInvalid                 Kind = "KEY_INVALID"
	TypeMismatch               Kind = "TYPE_MISMATCH"
	OutOfRange                 Kind = "OUT_OF_RANGE"
	MemoryBounds               Kind = "MEMORY_BOUNDS"
	InvalidUtf8                Kind = "INVALID_UTF8"
	InvalidBool                Kind = "INVALID_BOOL"
	InvalidChar                Kind = "INVALID_CHAR"
	UnknownDiscriminant        Kind = "UNKNOWN_DISCRIMINANT"
	UnknownCase                Kind = "UNKNOWN_CASE"
	UnknownFlagBit             Kind = "UNKNOWN_FLAG_BIT"
	UnsupportedEnvelopeVersion Kind = "UNSUPPORTED_ENVELOPE_VERSION"
	IncompatibleStoredVersion  Kind = "INCOMPATIBLE_STORED_VERSION"
	LimitExceeded              Kind = "LIMIT_EXCEEDED"
	GraphError                 Kind = "GRAPH_ERROR"
	EngineError                Kind = "ENGINE_ERROR"
)

// Error is the single error type returned by every public operation in this
// module. Op names the failing public operation (e.g. "TypedStore.Set"),
// not a Go function name, so that adapters (HTTP, CLI) have something
// user-facing to log.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write `errors.Is(err, witerrors.New(witerrors.KeyNotFound, "", ""))` or,
// more idiomatically, `witerrors.HasKind(err, witerrors.KeyNotFound)`.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New builds an *Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// HasKind reports whether err is, or wraps, a *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, if it is a *Error; ok is false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
