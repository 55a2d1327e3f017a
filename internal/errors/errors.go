// Package errors provides error types and handling for ppp.
// It includes custom error types with HTTP status codes and error codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError represents an application error with an associated HTTP status code.
type AppError struct {
	// Code is an optional error code string for programmatic handling
	Code string
	// Message is a user-friendly error message
	Message string
	// StatusCode is the HTTP status code associated with the failure
	StatusCode int
	// Cause is the underlying error (for error wrapping)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to work with AppError.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code != "" && e.Code == t.Code
	}
	return false
}

// Predefined error codes.
const (
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeRemoteCall     = "REMOTE_CALL_FAILED"
	ErrCodeNotFound       = "RESOURCE_NOT_FOUND"
	ErrCodeAmbiguousGroup = "AMBIGUOUS_GROUP"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeDatabaseError  = "DATABASE_ERROR"
)

// Sentinels usable as errors.Is targets.
var (
	ErrValidation      = &AppError{Code: ErrCodeValidation}
	ErrRemoteCall      = &AppError{Code: ErrCodeRemoteCall}
	ErrMissingResource = &AppError{Code: ErrCodeNotFound}
	ErrAmbiguousGroup  = &AppError{Code: ErrCodeAmbiguousGroup}
	ErrConflict        = &AppError{Code: ErrCodeConflict}
	ErrDatabaseFailure = &AppError{Code: ErrCodeDatabaseError}
	ErrInternalFailure = &AppError{Code: ErrCodeInternalError}
)

// ErrRemoteCallFailed creates a remote call error carrying the upstream status and body.
// message may be empty, in which case a generic one is derived from the status.
func ErrRemoteCallFailed(statusCode int, message, remoteBody string) *AppError {
	if message == "" {
		message = fmt.Sprintf("remote call failed with status %d", statusCode)
	}
	var cause error
	if body := strings.TrimSpace(remoteBody); body != "" {
		cause = fmt.Errorf("[%d] %s", statusCode, body)
	} else {
		cause = fmt.Errorf("[%d] %s", statusCode, http.StatusText(statusCode))
	}
	return &AppError{
		Code:       ErrCodeRemoteCall,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// ErrResourceMissing creates an error for an expected remote resource that does not exist.
func ErrResourceMissing(message string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ErrGroupAmbiguous creates an error for profiles owning more than one project.
func ErrGroupAmbiguous(message string) *AppError {
	return &AppError{
		Code:       ErrCodeAmbiguousGroup,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// ErrInternalError creates an internal error (500).
func ErrInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ErrDatabaseError creates a database error (503 Service Unavailable).
// Database failures are typically transient issues.
func ErrDatabaseError(message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeDatabaseError,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// GetStatusCode extracts the HTTP status code from an error.
// Returns 500 if the error is not an AppError.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an error.
// Returns empty string if the error is not an AppError.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return ErrCodeValidation
	}
	return ""
}

// GetErrorMessage extracts a user-friendly message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
