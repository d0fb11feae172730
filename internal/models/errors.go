package models

import (
	"errors"
	"fmt"
)

// UnauthorizedMessage is the message the API sends when the session is no
// longer valid. Transport maps it to CodeUnauthorized.
const UnauthorizedMessage = "You are not authorized to access this route"

// Error codes carried by AppError.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeTransport    = "TRANSPORT_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = UnauthorizedMessage
	}
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewTransportError wraps a failure to complete or decode a request.
func NewTransportError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeTransport,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal error",
		Err:     err,
	}
}

// CodeOf returns the AppError code anywhere in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsUnauthorized reports whether err signals an invalid session.
func IsUnauthorized(err error) bool {
	return CodeOf(err) == CodeUnauthorized
}

// MessageOf returns the user-facing message for err. For AppErrors this is
// the server or transport message without the wrapped cause.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
