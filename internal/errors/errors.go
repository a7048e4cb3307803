package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Scribe error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST" // 400
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED" // 401
	ErrNotFound        ErrorCode = "NOT_FOUND"       // 404
	ErrConflict        ErrorCode = "CONFLICT"        // 409
	ErrInternal        ErrorCode = "INTERNAL"        // 500
	ErrUnavailable     ErrorCode = "UNAVAILABLE"     // 503
)

// ScribeError represents a structured error with code, status, and details.
type ScribeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ScribeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ScribeError {
	return &ScribeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthenticated creates a 401 error for requests without a usable identity.
func NewUnauthenticated(msg string) *ScribeError {
	if msg == "" {
		msg = "no authenticated user"
	}
	return &ScribeError{
		Code:    ErrUnauthenticated,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a note cannot be found.
func NewNotFound(identifier string) *ScribeError {
	return &ScribeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("note not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *ScribeError {
	return &ScribeError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewUnavailable creates a 503 error for a backend that cannot be reached.
// Callers treat it as transient.
func NewUnavailable(err error) *ScribeError {
	msg := "store unavailable"
	if err != nil {
		msg = err.Error()
	}
	return &ScribeError{
		Code:    ErrUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ScribeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ScribeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is a ScribeError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ScribeError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// As returns the ScribeError carried by err, wrapping anything else as INTERNAL.
func As(err error) *ScribeError {
	var sErr *ScribeError
	if stderrors.As(err, &sErr) {
		return sErr
	}
	return NewInternal(err)
}
