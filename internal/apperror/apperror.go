// Package apperror defines the application's error taxonomy.
//
// Every layer below the HTTP handlers returns either one of these typed errors
// (possibly wrapped with fmt.Errorf("...: %w", err)) or a plain error. The
// handlers map the sentinels to status codes in one place; anything that is
// not an *AppError is treated as an internal (persistence) failure.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUpstream          = errors.New("upstream failure")
)

type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error (upstream failures)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidCredential is returned for every failed login, whether the username
// is unknown or the password is wrong. The message never says which.
func InvalidCredential() *AppError {
	return &AppError{
		Err:     ErrInvalidCredential,
		Message: "Invalid username or password",
	}
}

// UpstreamFailure wraps a failed call to a remote service. The message is what
// the client sees; the cause is kept for logging.
func UpstreamFailure(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}
