package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	svcerrors "github.com/relaygate/gateway/infrastructure/errors"
)

func alwaysRetryable(error) bool { return true }

func TestRetry_Success(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Base: 2, IsRetryable: alwaysRetryable}

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		return nil
	})

	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Base: 2, IsRetryable: alwaysRetryable}
	attempts := 0

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("fail")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_AllFail(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, Base: 2, IsRetryable: alwaysRetryable}
	testErr := errors.New("always fail")

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		return testErr
	})

	if err != testErr {
		t.Errorf("expected testErr, got %v", err)
	}
}

func TestRetry_NonRetryableStopsAfterOneAttempt(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	attempts := 0
	nonRetryable := svcerrors.Validation("message", "too long")

	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return nonRetryable
	})

	if err != nonRetryable {
		t.Errorf("expected the non-retryable error unchanged, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestDefaultIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "rate limited service error", err: svcerrors.RateLimited(60, 30), want: true},
		{name: "upstream error", err: svcerrors.UpstreamError("gpt", errors.New("boom")), want: true},
		{name: "permission denied", err: svcerrors.PermissionDenied(""), want: false},
		{name: "generic error", err: errors.New("plain"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultIsRetryable(tt.err); got != tt.want {
				t.Errorf("DefaultIsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_RespectsRemainingDeadline(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, Base: 2, IsRetryable: alwaysRetryable}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		attempts++
		return errors.New("fail")
	})

	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt before the next delay blows the deadline, got %d", attempts)
	}
	if err == nil {
		t.Error("expected an error")
	}
}
