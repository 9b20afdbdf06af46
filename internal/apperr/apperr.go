// Package apperr defines the typed failures surfaced by the core services.
// Every operation reports one of these kinds; callers branch on the kind, not
// on message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure
type Kind string

const (
	KindValidation     Kind = "validation-error"
	KindBadRequest     Kind = "bad-request"
	KindNotFound       Kind = "not-found"
	KindNonProcessable Kind = "non-processable"
	KindUnauthorized   Kind = "unauthorized"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal-error"
)

// ErrVersionConflict marks an optimistic-lock failure: the row was updated by
// a concurrent writer between read and write. Callers retry or drop the write.
var ErrVersionConflict = &Error{Kind: KindConflict, Message: "version conflict"}

// Error carries a kind, a human-readable message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same kind, so errors.Is(err, ErrVersionConflict)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind with a cause
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return New(KindBadRequest, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func NonProcessable(format string, args ...any) *Error {
	return New(KindNonProcessable, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, format, args...)
}

func Internal(format string, args ...any) *Error {
	return New(KindInternal, format, args...)
}

// KindOf extracts the kind from err, KindInternal when err carries none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
