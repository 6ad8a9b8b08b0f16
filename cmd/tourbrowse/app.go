package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/dnscache"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/circuitbreaker"
	"github.com/eugener/tourbook/internal/config"
	"github.com/eugener/tourbook/internal/fetch"
	"github.com/eugener/tourbook/internal/remote"
	"github.com/eugener/tourbook/internal/state"
	"github.com/eugener/tourbook/internal/storage/sqlite"
	"github.com/eugener/tourbook/internal/telemetry"
	"github.com/eugener/tourbook/internal/tourcache"
)

// pageKey is the state key holding the last listed page, so `next`
// continues across invocations.
const pageKey = "tour-page"

// app wires the client stack: local cache, catalog client, fetch
// coordinator and browsing state.
type app struct {
	cfg      *config.Config
	out      io.Writer
	store    *sqlite.Store
	cache    *tourcache.Policy
	breakers *circuitbreaker.Registry
	resolver *dnscache.Resolver
	fetcher  *fetch.Coordinator
	state    *state.AppState
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	shutdown func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, out: out}

	store, err := sqlite.New(cfg.Client.CacheDSN)
	if err != nil {
		return nil, err
	}
	a.store = store

	a.registry = prometheus.NewRegistry()
	a.metrics = telemetry.NewMetrics(a.registry)

	a.cache = tourcache.New(store, tourcache.WithRecorder(a.metrics))

	bc := cfg.Client.Breaker
	a.breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorThreshold: bc.ErrorThreshold,
		MinSamples:     bc.MinSamples,
		WindowSeconds:  bc.WindowSeconds,
		OpenTimeout:    bc.OpenTimeout,
	})
	a.resolver = &dnscache.Resolver{}

	client, err := remote.New(cfg.Client.BaseURL, cfg.Client.Timeout, a.resolver, remote.WithBreakers(a.breakers))
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.Telemetry.Tracing.Enabled {
		a.shutdown, err = telemetry.SetupTracing(ctx, "tourbrowse", cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	a.fetcher = fetch.New(client, a.cache,
		fetch.WithRevalidateDelay(cfg.Client.RevalidateDelay),
		fetch.WithRecorder(a.metrics),
	)
	a.state = state.NewAppState(a.fetcher, a.cache, state.StoredFilters{Store: store}, cfg.Client.PageLimit)
	if err := a.state.LoadFilters(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	if p, ok := a.loadPage(ctx); ok {
		a.state.RestorePagination(p)
	}
	return a, nil
}

// close waits for revalidations already fetching, then releases the store.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.fetcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close fetcher: %w", err))
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

func (a *app) loadPage(ctx context.Context) (state.Pagination, bool) {
	data, err := a.store.GetState(ctx, pageKey)
	if err != nil {
		if !errors.Is(err, tourbook.ErrNotFound) {
			slog.Warn("saved page unreadable", "error", err)
		}
		return state.Pagination{}, false
	}
	var p state.Pagination
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("saved page unreadable", "error", err)
		return state.Pagination{}, false
	}
	return p, true
}

func (a *app) savePage(ctx context.Context) {
	data, err := json.Marshal(a.state.Snapshot().Pagination)
	if err != nil {
		return
	}
	if err := a.store.PutState(ctx, pageKey, data); err != nil {
		slog.Warn("save page", "error", err)
	}
}
