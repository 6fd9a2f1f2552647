package api

import (
	"net/http"
	"time"
	"tour-optimization-service/internal/api/handlers"
	"tour-optimization-service/internal/metrics"
	"tour-optimization-service/internal/ports"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Optimizer    handlers.WaypointOptimizer
	Managers     ports.ManagerRepository
	RouteMetrics ports.RouteMetricsProvider
	// Deadline of one optimization request; zero leaves it unbounded.
	OptimizeTimeout time.Duration
	// Optional; checked by /health when set.
	DB handlers.Pinger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	optHandler := &handlers.OptimizationHandler{
		Optimizer: deps.Optimizer,
		Managers:  deps.Managers,
		Timeout:   deps.OptimizeTimeout,
	}
	metricsHandler := &handlers.RouteMetricsHandler{Provider: deps.RouteMetrics}
	healthHandler := &handlers.HealthHandler{DB: deps.DB}

	mux.HandleFunc("/health", healthHandler.Check)
	mux.HandleFunc("/optimizations", optHandler.Optimize)
	mux.HandleFunc("/route-metrics", metricsHandler.Calculate)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return requestIDMiddleware(loggingMiddleware(mux))
}
