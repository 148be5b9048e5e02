package services

import (
	"errors"

	"github.com/civicwatch/backend/internal/auth"
)

// Error kinds. Every error a service returns on purpose wraps one of these;
// anything else is an internal failure.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Error carries a caller-facing message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Message returns the caller-facing text of err, or fallback when err is
// not a service error.
func Message(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return fallback
}

// guardError converts an access predicate failure into a service error.
func guardError(err error, forbiddenMessage string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrUnauthenticated):
		return newError(ErrUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		return newError(ErrForbidden, forbiddenMessage)
	default:
		return err
	}
}
