// Package httpapi assembles the public HTTP surface.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notary/internal/platform/metrics"
	"notary/internal/platform/middleware"
	"notary/pkg/platform/httputil"
)

// Registrar mounts a group of authenticated routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Authenticate   func(http.Handler) http.Handler
	Health         map[string]HealthCheck
}

// NewRouter wires the common middleware chain, the unauthenticated health
// and metrics endpoints, and the authenticated API routes.
func NewRouter(opts Options, routes ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.LatencyMiddleware(opts.Metrics))

	r.Get("/healthz", healthHandler(opts.Health))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(opts.RequestTimeout))
		api.Use(middleware.ContentTypeJSON)
		api.Use(opts.Authenticate)
		for _, route := range routes {
			route.Register(api)
		}
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "unavailable"
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
