// Package api assembles the HTTP surface: routes, middleware, and the
// prometheus endpoint.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veritas-ai/veritas/api/handlers"
	"github.com/veritas-ai/veritas/humanloop"
	"github.com/veritas-ai/veritas/internal/metrics"
	"github.com/veritas-ai/veritas/orchestrator"
)

// RouterConfig holds the HTTP surface knobs.
type RouterConfig struct {
	// Version reported by the health endpoint
	Version string
	// RateLimitRPS is the per-client request rate; zero disables limiting
	RateLimitRPS float64
	// RateLimitBurst is the per-client burst
	RateLimitBurst int
	// APIKey, when set, is required on the X-API-Key header
	APIKey string
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Pipeline  *orchestrator.Orchestrator
	HumanLoop *humanloop.Manager
	Metrics   *metrics.Collector
	// Checks are readiness probes for /ready
	Checks []handlers.HealthCheck
}

// NewRouter wires every route with the middleware chain: request ID,
// logging, metrics, rate limiting, and optional API key auth.
func NewRouter(cfg RouterConfig, deps Deps, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(cfg.Version, logger)
	for _, check := range deps.Checks {
		health.RegisterCheck(check)
	}
	mux.HandleFunc("/health", health.HandleHealth)
	mux.HandleFunc("/ready", health.HandleReady)
	mux.Handle("/metrics", promhttp.Handler())

	query := handlers.NewQueryHandler(deps.Pipeline, logger)
	mux.HandleFunc("/v1/query", query.HandleSubmit)

	validation := handlers.NewValidationHandler(deps.HumanLoop, deps.Metrics, logger)
	mux.HandleFunc("/v1/validations", validation.HandleQueue)
	mux.HandleFunc("/v1/validations/history", validation.HandleHistory)
	mux.HandleFunc("/v1/validations/submit", validation.HandleSubmit)
	mux.HandleFunc("/v1/validations/", validation.HandleGet)

	wf := handlers.NewWorkflowHandler(deps.Pipeline.History(), logger)
	mux.HandleFunc("/v1/workflows", wf.HandleRecent)
	mux.HandleFunc("/v1/workflows/", wf.HandleGet)

	var handler http.Handler = mux
	if cfg.APIKey != "" {
		handler = APIKeyAuth(cfg.APIKey, logger)(handler)
	}
	if cfg.RateLimitRPS > 0 {
		handler = RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)(handler)
	}
	if deps.Metrics != nil {
		handler = Metrics(deps.Metrics)(handler)
	}
	handler = Logging(logger)(handler)
	handler = RequestID()(handler)
	return handler
}
