// Package errors provides the application error taxonomy shared by the
// provider client, the reconciliation path, and the service facade.
//
// The taxonomy determines retry behavior: transient errors are retried by the
// provider client, auth and client errors never are, and reconciliation
// errors abort only the affected entity, not the whole sync run.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType tags an error with its handling class.
type ErrorType string

const (
	// ErrorTypeAuth means the provider rejected our credentials. Fatal,
	// surfaced to operators, never retried.
	ErrorTypeAuth ErrorType = "auth_error"
	// ErrorTypeTransient covers network failures, timeouts, 5xx and 429
	// responses. Retried internally until attempts are exhausted.
	ErrorTypeTransient ErrorType = "transient_error"
	// ErrorTypeClient covers 4xx responses other than 401 and locally
	// rejected request parameters. Never retried.
	ErrorTypeClient ErrorType = "client_error"
	// ErrorTypeReconciliation marks a local persistence failure while
	// applying remote state.
	ErrorTypeReconciliation ErrorType = "reconciliation_error"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeValidation     ErrorType = "validation_error"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeInternal       ErrorType = "internal_error"
)

// AppError carries the error class, an HTTP status for the API boundary, and
// the wrapped cause.
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the operation.
func (e *AppError) Retryable() bool {
	return e.Type == ErrorTypeTransient
}

func newAppError(t ErrorType, code int, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, Code: code, cause: cause}
}

// NewAuthError creates an auth error (provider rejected credentials).
func NewAuthError(message string, cause error) *AppError {
	return newAppError(ErrorTypeAuth, http.StatusUnauthorized, message, cause)
}

// NewTransientError creates a retryable transient error.
func NewTransientError(message string, cause error) *AppError {
	return newAppError(ErrorTypeTransient, http.StatusServiceUnavailable, message, cause)
}

// NewClientError creates a non-retryable client error.
func NewClientError(message string, cause error) *AppError {
	return newAppError(ErrorTypeClient, http.StatusBadRequest, message, cause)
}

// NewReconciliationError creates a local persistence failure error.
func NewReconciliationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeReconciliation, http.StatusInternalServerError, message, cause)
}

func NewNotFoundError(message string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, nil)
}

func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, nil)
}

func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, nil)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func isType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

func IsAuthError(err error) bool {
	return isType(err, ErrorTypeAuth)
}

// IsTransient reports whether err (anywhere in its chain) is retryable.
func IsTransient(err error) bool {
	return isType(err, ErrorTypeTransient)
}

func IsClientError(err error) bool {
	return isType(err, ErrorTypeClient)
}

func IsReconciliationError(err error) bool {
	return isType(err, ErrorTypeReconciliation)
}

func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// HTTPStatus maps an error to the status the excluded API layer should
// return. Transient errors after exhausted retries map to 503; anything
// untyped maps to 500.
func HTTPStatus(err error) int {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
