package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/relaygate/gateway/infrastructure/httputil"
	sllogging "github.com/relaygate/gateway/infrastructure/logging"
)

// APIKeyValidator resolves a presented credential (API key or JWT) to a
// user identity. Implementations own hashing and the store lookup.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, credential string) (userID string, ok bool)
}

type auditEvent struct {
	ctx       context.Context
	reason    string
	method    string
	path      string
	clientIP  string
	userAgent string
}

var (
	auditLogger = sllogging.NewFromEnv("gateway")
	auditOnce   sync.Once
	auditQueue  chan *auditEvent
)

func enqueueAudit(event *auditEvent) {
	if event == nil {
		return
	}
	auditOnce.Do(func() {
		auditQueue = make(chan *auditEvent, 256)
		go func() {
			for auditEvent := range auditQueue {
				if auditEvent == nil {
					continue
				}
				fields := map[string]interface{}{
					"audit":      true,
					"event_type": "api_key_gate_reject",
					"reason":     auditEvent.reason,
					"method":     auditEvent.method,
					"path":       auditEvent.path,
					"client_ip":  auditEvent.clientIP,
					"user_agent": auditEvent.userAgent,
				}
				auditLogger.WithContext(auditEvent.ctx).WithFields(fields).Warn("API-key gate rejected request")
			}
		}()
	})

	select {
	case auditQueue <- event:
	default:
		// Never block request processing for audit logging.
	}
}

// exemptPaths skips the gate for health/metrics/docs and the
// auth-login/refresh routes, per §4.J's middleware chain.
var exemptPaths = map[string]bool{
	"/health":       true,
	"/healthz":      true,
	"/ready":        true,
	"/metrics":      true,
	"/docs":         true,
	"/auth/login":   true,
	"/auth/refresh": true,
	"/ws/chat":      true, // authenticates via its own {type:"auth"} frame handshake
}

// extractCredential implements the §4.E preference order: a dedicated
// header first, then a Bearer Authorization header, then (for WebSocket
// clients that cannot set headers before the handshake) a query-parameter
// fallback.
func extractCredential(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}
	return ""
}

// APIKeyGate is the §4.J request gate. It resolves a client's API key or
// JWT bearer token to a user identity via validator and rejects unresolved
// requests with 401, auditing the rejection without blocking the caller.
func APIKeyGate(validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			credential := extractCredential(r)
			if credential == "" {
				enqueueAudit(&auditEvent{
					ctx:       r.Context(),
					reason:    "missing_credential",
					method:    r.Method,
					path:      r.URL.Path,
					clientIP:  httputil.ClientIP(r),
					userAgent: r.UserAgent(),
				})
				httputil.Unauthorized(w, "authentication required")
				return
			}

			userID, ok := validator.ValidateAPIKey(r.Context(), credential)
			if !ok {
				enqueueAudit(&auditEvent{
					ctx:       r.Context(),
					reason:    "invalid_credential",
					method:    r.Method,
					path:      r.URL.Path,
					clientIP:  httputil.ClientIP(r),
					userAgent: r.UserAgent(),
				})
				httputil.Unauthorized(w, "invalid credential")
				return
			}

			ctx := sllogging.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
