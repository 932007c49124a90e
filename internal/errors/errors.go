// Package errors defines structured error types shared across the wiki.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a specific failure class.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrMissingField is returned when a required form field is missing.
	ErrMissingField ErrorCode = "MISSING_FIELD"

	// ErrTraversal is returned when a requested path escapes the wiki root
	// or violates the page layout convention.
	ErrTraversal ErrorCode = "TRAVERSAL"

	// ErrInvalidCredentials is returned on a failed login attempt.
	ErrInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	// ErrUnauthenticated is returned when a request carries no valid session.
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// ErrNotFound is returned when a page or resource does not exist.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrConflict is returned when creating a page that already exists.
	ErrConflict ErrorCode = "CONFLICT"

	// ErrWriteFailed is returned when the filesystem write did not complete.
	ErrWriteFailed ErrorCode = "WRITE_FAILED"
	// ErrCommitFailed is returned when the write applied but the commit did not.
	ErrCommitFailed ErrorCode = "COMMIT_FAILED"

	// ErrUnsupportedType is returned for uploads with a content type outside
	// the allowed set.
	ErrUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"
	// ErrTooLarge is returned for uploads exceeding the configured size limit.
	ErrTooLarge ErrorCode = "TOO_LARGE"

	// ErrRateLimited is returned when login attempts are throttled.
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrInternal is returned when an unexpected server error occurs.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error carrying an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
}

// APIError is a concrete error type with status code and code.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
}

// Wrap attaches an underlying error.
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

// Message returns the user-facing message without the wrapped cause.
func (e *APIError) Message() string {
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

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// AsAPIError returns the *APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Predefined constructors for the common cases.

// Traversal creates a 400 error for a path escaping the wiki root.
func Traversal(path string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrTraversal, fmt.Sprintf("invalid page path: %q", path))
}

// InvalidCredentials creates a 401 error for a failed login.
func InvalidCredentials() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrInvalidCredentials, "Invalid username or password")
}

// Unauthenticated creates a 401 error for a missing or invalid session.
func Unauthenticated() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrUnauthenticated, "Authentication required")
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, ErrConflict, message)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing form field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrMissingField, fmt.Sprintf("Missing required field: %s", fieldName))
}

// WriteFailed creates a 500 error for a filesystem write that did not apply.
func WriteFailed(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrWriteFailed, "Failed to write page").Wrap(err)
}

// CommitFailed creates a 500 error for a write that applied but was not committed.
func CommitFailed(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrCommitFailed, "Page saved but commit failed").Wrap(err)
}

// UnsupportedType creates a 415 error for a disallowed upload content type.
func UnsupportedType(contentType string) *APIError {
	return NewAPIError(http.StatusUnsupportedMediaType, ErrUnsupportedType, fmt.Sprintf("unsupported content type: %s", contentType))
}

// TooLarge creates a 413 error for an upload exceeding the size limit.
func TooLarge(limit int64) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrTooLarge, fmt.Sprintf("upload exceeds limit of %d bytes", limit))
}

// RateLimited creates a 429 error for throttled requests.
func RateLimited() *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrRateLimited, "Too many attempts, try again later")
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}
