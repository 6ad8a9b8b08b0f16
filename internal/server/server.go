// Package server implements the catalog HTTP API that tourbrowse clients read from.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/cache"
	"github.com/eugener/tourbook/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Catalog serves tour reads. catalog.Service implements it.
type Catalog interface {
	GetTour(ctx context.Context, id string) (*tourbook.TourDetail, error)
	ListTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error)
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Catalog        Catalog
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Cache          cache.Cache        // nil = no response caching
	Metrics        *telemetry.Metrics // nil = no metrics middleware
	MetricsHandler http.Handler       // nil = /metrics not mounted
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Get("/api/tours", s.handleListTours)
	r.Get("/api/tours/{id}", s.handleGetTour)

	return r
}

type server struct {
	deps Deps
}
