package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/api/handler"
	apimw "github.com/notifyhub/suggestion-worker/internal/api/middleware"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route of the ops surface. A nil enqueuer leaves POST /api/v1/requests
// unmounted.
func NewRouter(runner handler.CycleRunner, enqueuer handler.Enqueuer, checks map[string]handler.Check, reg prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)         // recover panics, return 500
	r.Use(chimw.RealIP)            // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)     // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	hh := handler.NewHealthHandler(checks)
	ch := handler.NewCycleHandler(runner, logger)

	// --- routes ---
	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cycles", ch.Trigger)
		r.Get("/cycles/last", ch.Last)
		if enqueuer != nil {
			r.Post("/requests", handler.NewRequestHandler(enqueuer, logger).Enqueue)
		}
	})

	return r
}
