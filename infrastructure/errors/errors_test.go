package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServiceError
		want string
	}{
		{
			name: "error without underlying error",
			err:  New(ErrCodeAuthenticationReq, "test message", http.StatusUnauthorized),
			want: "[AUTHENTICATION_REQUIRED] test message",
		},
		{
			name: "error with underlying error",
			err:  Wrap(ErrCodeInternal, "test message", http.StatusInternalServerError, errors.New("underlying")),
			want: "[INTERNAL_ERROR] test message: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, "test", http.StatusInternalServerError, underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestServiceError_WithDetails(t *testing.T) {
	err := Validation("field", "invalid")
	err.WithDetails("field", "username").WithDetails("reason", "too short")

	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
	if err.Details["field"] != "username" {
		t.Errorf("Details[field] = %v, want username", err.Details["field"])
	}
}

func TestAuthenticationRequired(t *testing.T) {
	err := AuthenticationRequired("")
	if err.Code != ErrCodeAuthenticationReq {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeAuthenticationReq)
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusUnauthorized)
	}
}

func TestInvalidCredential(t *testing.T) {
	err := InvalidCredential("bad api key")
	if err.Code != ErrCodeInvalidCredential {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidCredential)
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusUnauthorized)
	}
}

func TestPermissionDenied(t *testing.T) {
	err := PermissionDenied("access denied")
	if err.Code != ErrCodePermissionDenied {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodePermissionDenied)
	}
	if err.HTTPStatus != http.StatusForbidden {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusForbidden)
	}
}

func TestValidation(t *testing.T) {
	err := Validation("email", "invalid format")
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusUnprocessableEntity)
	}
	if err.Details["field"] != "email" {
		t.Errorf("Details[field] = %v, want email", err.Details["field"])
	}
}

func TestSecurityValidation(t *testing.T) {
	err := SecurityValidation("sql pattern detected")
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("conversation", "123")
	if err.Code != ErrCodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNotFound)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusNotFound)
	}
	if err.Details["resource"] != "conversation" || err.Details["id"] != "123" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestConflict(t *testing.T) {
	err := Conflict("username taken")
	if err.Code != ErrCodeConflict {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConflict)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusConflict)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	err := PayloadTooLarge(10 << 20)
	if err.HTTPStatus != http.StatusRequestEntityTooLarge {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusRequestEntityTooLarge)
	}
}

func TestRateLimited(t *testing.T) {
	err := RateLimited(60, 60)
	if err.Code != ErrCodeRateLimited {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeRateLimited)
	}
	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusTooManyRequests)
	}
	if err.Details["limit"] != 60 {
		t.Errorf("Details[limit] = %v, want 60", err.Details["limit"])
	}
}

func TestCircuitOpen(t *testing.T) {
	err := CircuitOpen("gpt")
	if err.Code != ErrCodeCircuitOpen {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeCircuitOpen)
	}
	if err.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusInternalServerError)
	}
}

func TestUpstreamError(t *testing.T) {
	underlying := errors.New("connection reset")
	err := UpstreamError("gpt", underlying)
	if err.Code != ErrCodeUpstreamError {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUpstreamError)
	}
	if err.Err != underlying {
		t.Errorf("Err = %v, want %v", err.Err, underlying)
	}
}

func TestServiceUnavailable(t *testing.T) {
	err := ServiceUnavailable("database unhealthy")
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusServiceUnavailable)
	}
}

func TestInternal(t *testing.T) {
	underlying := errors.New("boom")
	err := Internal("internal error", underlying)
	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if err.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusInternalServerError)
	}
}

func TestIsServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "service error", err: New(ErrCodeInternal, "test", http.StatusInternalServerError), want: true},
		{name: "standard error", err: errors.New("standard error"), want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServiceError(tt.err); got != tt.want {
				t.Errorf("IsServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetServiceError(t *testing.T) {
	serviceErr := New(ErrCodeInternal, "test", http.StatusInternalServerError)
	standardErr := errors.New("standard error")

	tests := []struct {
		name string
		err  error
		want *ServiceError
	}{
		{name: "service error", err: serviceErr, want: serviceErr},
		{name: "standard error", err: standardErr, want: nil},
		{name: "nil error", err: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetServiceError(tt.err); got != tt.want {
				t.Errorf("GetServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "service error", err: New(ErrCodeAuthenticationReq, "test", http.StatusUnauthorized), want: http.StatusUnauthorized},
		{name: "standard error", err: errors.New("standard error"), want: http.StatusInternalServerError},
		{name: "nil error", err: nil, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
