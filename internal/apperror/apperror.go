package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// Field-level validation kinds. Each wraps ErrValidation, so
// errors.Is(err, ErrValidation) holds for all of them.
var (
	ErrRequired    = fmt.Errorf("%w: required field", ErrValidation)
	ErrInvalidEnum = fmt.Errorf("%w: invalid enum value", ErrValidation)
	ErrRange       = fmt.Errorf("%w: out of range", ErrValidation)
	ErrFormat      = fmt.Errorf("%w: malformed value", ErrValidation)
)

// Dialog guard errors. None of them are fatal: the dialog keeps its state.
var (
	ErrChallengeMismatch = errors.New("improper deletion input")
	ErrInvalidTransition = errors.New("invalid dialog transition")
	ErrBusy              = errors.New("request already in flight")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// FieldInvalid is ValidationFailed with a specific kind (ErrRequired,
// ErrInvalidEnum, ErrRange or ErrFormat).
func FieldInvalid(kind error, field, message string) *AppError {
	return &AppError{
		Err:     kind,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
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

// Unauthorized means no session identity was available.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// RateLimited is returned when a caller exceeded its mutation quota.
func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
	}
}

// ChallengeMismatch is returned by the delete confirmation gate.
func ChallengeMismatch() *AppError {
	return &AppError{
		Err:     ErrChallengeMismatch,
		Message: "Improper deletion input",
		Field:   "challenge",
	}
}

// InvalidTransition reports a dialog trigger that is not allowed from the
// current state, e.g. "submit" while viewing.
func InvalidTransition(trigger, state string) *AppError {
	return &AppError{
		Err:     ErrInvalidTransition,
		Message: fmt.Sprintf("cannot %s while %s", trigger, state),
	}
}

// Busy reports that a mutation for the same dialog is still pending.
func Busy() *AppError {
	return &AppError{
		Err:     ErrBusy,
		Message: "a request is already in progress",
	}
}
