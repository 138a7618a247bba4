// Package middleware provides HTTP middleware for the gateway.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/relaygate/gateway/infrastructure/errors"
	internalhttputil "github.com/relaygate/gateway/infrastructure/httputil"
	"github.com/relaygate/gateway/infrastructure/logging"
	"github.com/relaygate/gateway/internal/ratelimit"
)

// RateLimiter is the §4.J request gate: one token bucket per client
// identity (API-key prefix, resolved onto the request context by the
// auth gate and read back via logging.GetUserID, preferred over remote
// address), refilling to requestsPerMinute once per minute. Exhaustion
// returns 429 with Retry-After and X-RateLimit-* headers.
type RateLimiter struct {
	registry          *ratelimit.Registry
	requestsPerMinute int
	logger            *logging.Logger
}

func NewRateLimiter(requestsPerMinute int, logger *logging.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		registry:          ratelimit.NewRegistry(ratelimit.PerMinute(requestsPerMinute)),
		requestsPerMinute: requestsPerMinute,
		logger:            logger,
	}
}

func clientIdentity(r *http.Request) string {
	if key := logging.GetUserID(r.Context()); key != "" {
		return key
	}
	if ip := internalhttputil.ClientIP(r); ip != "" {
		return ip
	}
	return "unknown"
}

// LimiterCount reports how many distinct client buckets currently exist.
func (rl *RateLimiter) LimiterCount() int {
	if rl == nil {
		return 0
	}
	return rl.registry.Count()
}

// Handler returns the rate-limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := clientIdentity(r)
		bucket := rl.registry.Get(identity)

		if !bucket.TryAcquire(1) {
			if rl.logger != nil {
				rl.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
					"identity": identity,
					"path":     r.URL.Path,
					"method":   r.Method,
				})
			}

			serviceErr := errors.RateLimited(rl.requestsPerMinute, 60)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "60")
			internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(bucket.Remaining()))
		next.ServeHTTP(w, r)
	})
}
