// Package apperr defines the error kinds shared by every store and service:
// not found, conflict, forbidden, validation failed and unavailable. Errors
// carry a human readable message and unwrap to one of the sentinel kinds so
// callers classify them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation failed")
	ErrUnavailable = errors.New("unavailable")
)

// Error is a classified error. Kind is one of the sentinel errors above.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

// Is lets errors.Is match both the kind and the wrapped cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newf(ErrNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(ErrConflict, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newf(ErrForbidden, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return newf(ErrValidation, format, args...)
}

// Unavailable wraps a transport or pool failure from the underlying store.
func Unavailable(cause error, format string, args ...interface{}) error {
	return &Error{Kind: ErrUnavailable, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Wrap classifies cause under kind, keeping cause reachable through errors.Unwrap.
func Wrap(kind, cause error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool    { return errors.Is(err, ErrConflict) }
func IsForbidden(err error) bool   { return errors.Is(err, ErrForbidden) }
func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// Code returns the stable machine-readable code for err's kind.
func Code(err error) string {
	switch {
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	case IsForbidden(err):
		return "forbidden"
	case IsValidation(err):
		return "validation_failed"
	case IsUnavailable(err):
		return "unavailable"
	default:
		return "internal"
	}
}
