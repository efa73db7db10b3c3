// Package errors defines structured error types for the HTTP API.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies the kind of failure in API responses.
type ErrorCode string

const (
	// ErrValidationFailed is returned when a request is malformed.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrKeyNotFound is returned when no value exists at the requested key.
	ErrKeyNotFound ErrorCode = "KEY_NOT_FOUND"
	// ErrShapeMismatch is returned when a key does not fit the document.
	ErrShapeMismatch ErrorCode = "SHAPE_MISMATCH"
	// ErrIndexOutOfRange is returned when an index is too far past the end of
	// an array.
	ErrIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"
	// ErrInvalidRootShape is returned when the root would not be an object.
	ErrInvalidRootShape ErrorCode = "INVALID_ROOT_SHAPE"
	// ErrStorageError is returned when the document cannot be written.
	ErrStorageError ErrorCode = "STORAGE_ERROR"
	// ErrUnavailable is returned once the store is shutting down.
	ErrUnavailable ErrorCode = "UNAVAILABLE"
	// ErrRateLimited is returned when writes arrive faster than allowed.
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrInternal is returned when an unexpected server error occurs.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code, code, and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// KeyNotFound creates a 404 error for key.
func KeyNotFound(key string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrKeyNotFound, fmt.Sprintf("key %q not found", key)).WithDetail("key", key)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// ShapeMismatch creates a 409 Conflict error.
func ShapeMismatch(err error) *APIError {
	return NewAPIError(http.StatusConflict, ErrShapeMismatch, "key does not fit the document").Wrap(err)
}

// IndexOutOfRange creates a 400 error for an index too far past the end of an
// array.
func IndexOutOfRange(err error) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrIndexOutOfRange, "index too far past the end of the array").Wrap(err)
}

// InvalidRootShape creates a 400 error for a root replacement that is not an
// object.
func InvalidRootShape(err error) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrInvalidRootShape, "root must be an object").Wrap(err)
}

// Storage creates a 500 error for a failed write.
func Storage(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrStorageError, "failed to write document").Wrap(err)
}

// Unavailable creates a 503 error.
func Unavailable(err error) *APIError {
	return NewAPIError(http.StatusServiceUnavailable, ErrUnavailable, "store is closed").Wrap(err)
}

// Internal creates a 500 error wrapping an underlying error.
func Internal(message string, err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message).Wrap(err)
}
