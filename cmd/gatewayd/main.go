// Package main runs the gateway's single HTTP/WS server binary
// (spec.md §4.J): it loads configuration, opens storage (running
// pending migrations), wires every internal/* component, and serves
// the resulting router until a termination signal arrives.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/relaygate/gateway/infrastructure/logging"
	"github.com/relaygate/gateway/internal/adapters"
	"github.com/relaygate/gateway/internal/audit"
	"github.com/relaygate/gateway/internal/auth"
	"github.com/relaygate/gateway/internal/config"
	"github.com/relaygate/gateway/internal/contextstore"
	"github.com/relaygate/gateway/internal/cost"
	"github.com/relaygate/gateway/internal/httpapi"
	"github.com/relaygate/gateway/internal/orchestrator"
	"github.com/relaygate/gateway/internal/ratelimit"
	"github.com/relaygate/gateway/internal/resilience"
	"github.com/relaygate/gateway/internal/routing"
	"github.com/relaygate/gateway/internal/storage"
)

func main() {
	configPath := flag.String("config", "gateway.toml", "path to the gateway TOML config file")
	envPath := flag.String("env", ".env", "path to a .env file of secrets (optional)")
	flag.Parse()

	logger := logging.NewFromEnv("gatewayd")

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer backend.Close()

	issuer := auth.NewTokenIssuer(cfg.JWTSecretKey)
	auditLogger := audit.NewLogger(backend, logger)
	contextMgr := contextstore.NewManager(backend)
	costTracker := cost.NewTracker(backend, cost.DefaultPricingTable())
	adapterRegistry := buildAdapterRegistry(cfg, logger)
	rules := routing.NewRules(cfg.Routing.DefaultTool, cfg.Routing.CodeEditing, cfg.Routing.Research, cfg.Routing.GeneralChat)

	orch := &orchestrator.Orchestrator{
		Rules:    rules,
		Adapters: adapterRegistry,
		Contexts: contextMgr,
		Costs:    costTracker,
		Audit:    auditLogger,
		Breakers: resilience.NewRegistry(resilience.DefaultBreakerConfig),
		Limiters: ratelimit.NewRegistry(ratelimit.PerMinute(cfg.API.RateLimitPerMin)),
		RetryCfg: resilience.DefaultRetryConfig(),
	}

	server := httpapi.NewServer(httpapi.Deps{
		Config:       cfg,
		Storage:      backend,
		Issuer:       issuer,
		Audit:        auditLogger,
		Adapters:     adapterRegistry,
		Rules:        rules,
		Orchestrator: orch,
		Costs:        costTracker,
		Logger:       logger,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second, // long enough for streaming adapter calls
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Infof("gatewayd listening on port %s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}

// buildAdapterRegistry constructs one Adapter per enabled [tools.<name>]
// config section, grounding the OpenAI-compatible ones on langchaingo
// and everything else on the generic gjson-path extractor.
func buildAdapterRegistry(cfg *config.Config, logger *logging.Logger) *adapters.Registry {
	registry := adapters.NewRegistry()
	for name, tool := range cfg.Tools {
		if !tool.Enabled {
			continue
		}
		caps := map[adapters.Capability]bool{
			adapters.CapGeneralChat: true,
			adapters.CapStreaming:   true,
		}
		maxWindow := tool.MaxContextWindow
		if maxWindow <= 0 {
			maxWindow = 8192
		}

		toolType := strings.ToLower(tool.Type)
		if toolType == "" {
			toolType = "openai"
		}

		switch toolType {
		case "openai":
			caps[adapters.CapCodeContext] = true
			a, err := adapters.NewOpenAIAdapter(name, tool.APIKey, tool.Model, tool.Endpoint, maxWindow)
			if err != nil {
				logger.WithError(err).Warnf("skipping tool %q: failed to construct openai adapter", name)
				continue
			}
			registry.Register(a)
		case "generic":
			if tool.Endpoint == "" {
				logger.Warnf("skipping tool %q: type=generic requires endpoint", name)
				continue
			}
			registry.Register(adapters.NewGenericHTTPAdapter(name, tool.Endpoint, tool.APIKey, tool.Model, caps, maxWindow))
		default:
			logger.Warnf("skipping tool %q: unknown type %q", name, tool.Type)
		}
	}
	return registry
}
