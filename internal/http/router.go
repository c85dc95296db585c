// Package http assembles the public router: middleware chain, attendance
// routes, health, and metrics.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timeclock/internal/attendance/handler"
	"timeclock/internal/platform/middleware"
	"timeclock/pkg/platform/httputil"
)

// HealthChecker reports backend liveness for the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps are the wired components the router mounts.
type Deps struct {
	Attendance *handler.Handler
	Validator  *middleware.JWTValidator
	Logger     *slog.Logger

	// Backends listed here show up in /healthz output by name.
	Backends map[string]HealthChecker
}

// New builds the router. Attendance routes sit behind authentication;
// health and metrics stay open for probes and scrapers.
func New(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", healthHandler(deps.Backends))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		deps.Attendance.Register(r)
	})

	return r
}

func healthHandler(backends map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := make(map[string]string, len(backends))
		for name, backend := range backends {
			if err := backend.Health(r.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
