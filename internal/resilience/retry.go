package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"

	svcerrors "github.com/relaygate/gateway/infrastructure/errors"
)

// RetryConfig configures the exponential-backoff-with-jitter policy of
// spec.md §4.C.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Base         float64 // exponential base, e.g. 2.0
	Jitter       bool
	// IsRetryable classifies an error as retryable. Defaults to
	// DefaultIsRetryable when nil.
	IsRetryable func(error) bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Base:         2.0,
		Jitter:       true,
	}
}

// DefaultIsRetryable matches spec.md §4.C's default retryable set:
// connection errors, timeouts, an upstream rate-limit signal, and a
// generic upstream 5xx.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if svcErr := svcerrors.GetServiceError(err); svcErr != nil {
		switch svcErr.Code {
		case svcerrors.ErrCodeRateLimited, svcerrors.ErrCodeUpstreamError, svcerrors.ErrCodeServiceUnavailable:
			return true
		}
		return false
	}
	return false
}

// delayForAttempt implements min(initial * base^n, max) * U[0.75,1.0].
func delayForAttempt(cfg RetryConfig, n int) time.Duration {
	raw := float64(cfg.InitialDelay) * math.Pow(cfg.Base, float64(n))
	if raw > float64(cfg.MaxDelay) {
		raw = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		raw *= 0.75 + rand.Float64()*0.25
	}
	return time.Duration(raw)
}

// Retry executes fn, retrying on a retryable error per cfg. A
// non-retryable error, or exhausted attempts, surfaces the last error
// from fn unchanged. A retry that would not fit within ctx's remaining
// deadline is not attempted.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	classify := cfg.IsRetryable
	if classify == nil {
		classify = DefaultIsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := delayForAttempt(cfg, attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
