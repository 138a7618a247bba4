// Package httpapi implements the gateway's HTTP/WebSocket surface
// (spec.md §4.J): the exact middleware chain, the REST route table,
// and the /ws/chat streaming endpoint, composed from the ambient
// infrastructure/middleware stack plus the internal/* domain packages.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaygate/gateway/infrastructure/logging"
	"github.com/relaygate/gateway/infrastructure/middleware"
	"github.com/relaygate/gateway/internal/adapters"
	"github.com/relaygate/gateway/internal/audit"
	"github.com/relaygate/gateway/internal/auth"
	"github.com/relaygate/gateway/internal/config"
	"github.com/relaygate/gateway/internal/cost"
	"github.com/relaygate/gateway/internal/orchestrator"
	"github.com/relaygate/gateway/internal/routing"
	"github.com/relaygate/gateway/internal/storage"
)

// Deps bundles every component the HTTP surface calls into.
type Deps struct {
	Config       *config.Config
	Storage      storage.Backend
	Issuer       *auth.TokenIssuer
	Audit        *audit.Logger
	Adapters     *adapters.Registry
	Rules        *routing.Rules
	Orchestrator *orchestrator.Orchestrator
	Costs        *cost.Tracker
	Logger       *logging.Logger
}

// Server owns the gateway's gorilla/mux router and every HTTP/WS
// handler (spec.md §4.J).
type Server struct {
	deps   Deps
	router *mux.Router
}

// NewServer builds the full middleware chain and route table.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.NewFromEnv("gatewayd")
	}
	s := &Server{deps: deps, router: mux.NewRouter()}
	s.applyMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) Router() *mux.Router { return s.router }

// applyMiddleware wires the exact §4.J chain: body-size cap -> CORS ->
// request-ID -> structured logger -> API-key gate -> rate limit ->
// security headers -> optional CSRF -> input validator. gorilla/mux
// runs Use() registrations outermost-first, in registration order.
func (s *Server) applyMiddleware() {
	cfg := s.deps.Config

	s.router.Use(middleware.NewBodyLimitMiddleware(0).Handler)
	s.router.Use(middleware.NewCORSMiddleware(&middleware.CORSConfig{
		AllowedOrigins: cfg.API.AllowedOrigins,
	}).Handler)
	s.router.Use(middleware.LoggingMiddleware(s.deps.Logger)) // assigns/propagates request ID + structured log line
	s.router.Use(middleware.NewRecoveryMiddleware(s.deps.Logger).Handler)
	s.router.Use(middleware.APIKeyGate(&credentialValidator{deps: s.deps}))
	s.router.Use(middleware.NewRateLimiter(cfg.API.RateLimitPerMin, s.deps.Logger).Handler)
	s.router.Use(middleware.NewSecurityHeadersMiddleware(nil).Handler)
	if cfg.EnableCSRF {
		s.router.Use(NewCSRFMiddleware().Handler)
	}
	s.router.Use(middleware.NewValidationMiddleware(middleware.DefaultValidationConfig()).Handler)
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerChatRoutes()
	s.registerAuthRoutes()
	s.registerWebsocketRoutes()
}

func (s *Server) registerHealthRoutes() {
	checker := middleware.NewHealthChecker("gatewayd")
	checker.RegisterCheck("storage", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.deps.Storage.HealthCheck(ctx)
	})
	s.router.Handle("/health", checker.Handler()).Methods(http.MethodGet)
	s.router.Handle("/live", middleware.LivenessHandler()).Methods(http.MethodGet)
	ready := true
	s.router.Handle("/ready", middleware.ReadinessHandler(&ready)).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}
