// Package errors provides the closed error taxonomy used to translate
// internal failures into HTTP responses at the API boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies one member of the closed error taxonomy.
type ErrorCode string

const (
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeAuthenticationReq    ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidCredential    ErrorCode = "INVALID_CREDENTIAL"
	ErrCodePermissionDenied     ErrorCode = "PERMISSION_DENIED"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodePayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"
	ErrCodeCircuitOpen          ErrorCode = "CIRCUIT_OPEN"
	ErrCodeUpstreamError        ErrorCode = "UPSTREAM_ERROR"
	ErrCodeExhausted            ErrorCode = "EXHAUSTED"
	ErrCodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is a structured error carrying the HTTP status it maps to.
// It is the only error type that should cross the handler boundary; the
// global exception handler renders it as {error, details?} and never leaks
// a stack trace.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a structured detail key/value pair and returns the
// receiver for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Validation maps to 400/422 depending on whether the failure is a security
// gate rejection (SQL-danger pattern, control characters) or a schema error.
func Validation(field, reason string) *ServiceError {
	return New(ErrCodeValidation, "validation failed", http.StatusUnprocessableEntity).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func SecurityValidation(reason string) *ServiceError {
	return New(ErrCodeValidation, "request rejected by input validator", http.StatusBadRequest).
		WithDetails("reason", reason)
}

func AuthenticationRequired(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return New(ErrCodeAuthenticationReq, message, http.StatusUnauthorized)
}

func InvalidCredential(message string) *ServiceError {
	if message == "" {
		message = "invalid credential"
	}
	return New(ErrCodeInvalidCredential, message, http.StatusUnauthorized)
}

func PermissionDenied(message string) *ServiceError {
	if message == "" {
		message = "permission denied"
	}
	return New(ErrCodePermissionDenied, message, http.StatusForbidden)
}

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

func PayloadTooLarge(maxBytes int64) *ServiceError {
	return New(ErrCodePayloadTooLarge, "request body exceeds the allowed size", http.StatusRequestEntityTooLarge).
		WithDetails("max_bytes", maxBytes)
}

// RateLimited carries the data the middleware needs to set Retry-After and
// the X-RateLimit-* response headers.
func RateLimited(limitPerMinute, retryAfterSeconds int) *ServiceError {
	return New(ErrCodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limitPerMinute).
		WithDetails("retry_after", retryAfterSeconds)
}

func CircuitOpen(provider string) *ServiceError {
	return New(ErrCodeCircuitOpen, "circuit breaker is open", http.StatusInternalServerError).
		WithDetails("provider", provider)
}

func UpstreamError(provider string, err error) *ServiceError {
	return Wrap(ErrCodeUpstreamError, "upstream provider error", http.StatusInternalServerError, err).
		WithDetails("provider", provider)
}

func Exhausted(message string) *ServiceError {
	return New(ErrCodeExhausted, message, http.StatusInternalServerError)
}

func ServiceUnavailable(message string) *ServiceError {
	return New(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

// IsServiceError reports whether err is, or wraps, a *ServiceError.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status for err, defaulting to 500 for
// errors that never went through this package.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
