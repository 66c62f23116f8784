package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/api/handler"
	apimw "github.com/aqura-labs/pushrelay/internal/api/middleware"
	"github.com/aqura-labs/pushrelay/internal/processor"
	"github.com/aqura-labs/pushrelay/internal/registry"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	reg *registry.Registry,
	ev registry.Evictor,
	mat *processor.Materializer,
	proc *processor.Processor,
	jan *processor.Janitor,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	sh := handler.NewSubscriptionHandler(reg, ev, logger)
	qh := handler.NewQueueHandler(mat, proc, jan, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Subscriptions — note: /stats must be registered before
		// /{device_id} so chi does not treat the literal "stats" as an ID.
		r.Get("/subscriptions/stats", sh.Stats)
		r.Post("/subscriptions", sh.Register)
		r.Delete("/subscriptions/{device_id}", sh.Deactivate)
		r.Put("/subscriptions/{device_id}/touch", sh.Touch)

		r.Post("/users/{id}/subscriptions/cleanup", sh.CleanupUser)

		// Queue
		r.Post("/notifications/{id}/queue", qh.Materialize)
		r.Post("/queue/process", qh.Process)
		r.Delete("/queue/entries", qh.Cleanup)
	})

	return r
}
