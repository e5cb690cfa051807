// Package corerr defines the core's typed error kinds.
//
// The core never swallows a StorageFailure and never invents new kinds
// outside this set; callers switch on Kind rather than string-matching
// error messages.
package corerr

import "fmt"

// Kind enumerates the error taxonomy of §7.
type Kind string

const (
	NotFound         Kind = "not_found"
	Ambiguous        Kind = "ambiguous"
	InvalidArgument  Kind = "invalid_argument"
	ProviderFailure  Kind = "provider_failure"
	StorageFailure   Kind = "storage_failure"
	MigrationFailure Kind = "migration_failure"
)

// Error is the core's error type: a kind, a human message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf creates an Error wrapping cause with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Ambiguousf builds an Ambiguous error.
func Ambiguousf(format string, args ...interface{}) *Error {
	return New(Ambiguous, fmt.Sprintf(format, args...))
}

// InvalidArgumentf builds an InvalidArgument error.
func InvalidArgumentf(format string, args ...interface{}) *Error {
	return New(InvalidArgument, fmt.Sprintf(format, args...))
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
