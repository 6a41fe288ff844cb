// Package apperr holds the error kinds every layer agrees on. Domain code
// wraps one of the sentinels; the HTTP layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error carries a client-facing message and the kind it belongs to.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New builds an error of the given kind whose message is safe to show callers.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func NotFound(format string, args ...any) error {
	return New(ErrNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error {
	return New(ErrValidation, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return New(ErrConflict, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...any) error {
	return New(ErrForbidden, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) error {
	return New(ErrUnauthorized, fmt.Sprintf(format, args...))
}

// Message returns the client-facing text of err, or "" if err carries none.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
