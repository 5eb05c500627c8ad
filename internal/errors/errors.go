// Package errors defines the service error taxonomy and its HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category understood by every handler.
type Code string

const (
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodeNotFound        Code = "not_found"
	CodeValidation      Code = "validation_failure"
	CodeConflict        Code = "conflict"
	CodeOperationFailed Code = "operation_failed"
)

// ServiceError carries a category, a client-safe message and optional
// field-level details.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]string
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// Is makes two service errors equal when their codes match, so callers can
// test categories with errors.Is.
func (e *ServiceError) Is(target error) bool {
	var se *ServiceError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// WithDetail attaches a field-level detail and returns the error.
func (e *ServiceError) WithDetail(field, msg string) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[field] = msg
	return e
}

// WithCause attaches an underlying error and returns the error.
func (e *ServiceError) WithCause(err error) *ServiceError {
	e.cause = err
	return e
}

func newError(code Code, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Unauthenticated reports a missing, invalid or expired token.
func Unauthenticated(message string) *ServiceError {
	return newError(CodeUnauthenticated, http.StatusUnauthorized, message)
}

// Forbidden reports a valid identity with insufficient role or ownership.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message)
}

// NotFound reports an absent entity.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message)
}

// Validation reports malformed or rejected input.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message)
}

// Conflict reports a retryable collision such as an optimistic-concurrency
// failure or a duplicate like.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message)
}

// OperationFailed reports a persistence or collaborator failure during the
// commit step.
func OperationFailed(message string, cause error) *ServiceError {
	return newError(CodeOperationFailed, http.StatusInternalServerError, message).WithCause(cause)
}

// AsServiceError extracts a *ServiceError from err, or nil when err is from
// outside the taxonomy.
func AsServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
