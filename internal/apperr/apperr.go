// Package apperr defines the error taxonomy shared by the engines.
//
// Every rejection carries a Kind (what the caller should do about it) and a
// machine-readable Code (what went wrong). Wrapped causes stay reachable
// through errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller can recover from it.
type Kind string

const (
	// Validation: the request was malformed or rejected; fix it and retry.
	Validation Kind = "validation"
	// NotFound: the addressed record does not exist.
	NotFound Kind = "not_found"
	// Conflict: a concurrent writer won; re-read and retry once.
	Conflict Kind = "conflict"
	// External: a dependency (chain, dictionary, wallet lookup) failed; retry unchanged later.
	External Kind = "external"
	// Invariant: the operation is illegal in the current state (client bug).
	Invariant Kind = "invariant"
	// Internal: anything else.
	Internal Kind = "internal"
)

// Error is the concrete error type returned by the engines.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Code so sentinels compare equal after Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New returns a sentinel-style error.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap attaches a cause to a copy of sentinel.
func Wrap(sentinel *Error, err error) *Error {
	cp := *sentinel
	cp.Err = err
	return &cp
}

// Externalf builds an External error around a failing dependency call.
func Externalf(err error, format string, args ...any) *Error {
	return &Error{Kind: External, Code: "external_dependency", Msg: fmt.Sprintf(format, args...), Err: err}
}

// Internalf builds an Internal error.
func Internalf(err error, format string, args ...any) *Error {
	return &Error{Kind: Internal, Code: "internal", Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the Kind of err, or Internal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf reports the Code of err, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// MessageOf reports the human-readable message of err without its cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

// Persistence sentinels shared by every store implementation.
var (
	ErrNotFound = New(NotFound, "not_found", "record not found")
	ErrConflict = New(Conflict, "conflict", "record was modified concurrently")
)
