// Package fetch coordinates cache-first reads with background revalidation.
//
// A read first consults the local tour cache. On a hit the cached data is
// returned at once and a detached revalidation refreshes the cache after a
// short delay; its outcome is visible only to later reads. On a miss, or when
// the caller bypasses the cache, the catalog is fetched directly and the
// result stored. Concurrent fetches of the same key share one remote call.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/tourcache"
)

// DefaultRevalidateDelay is the pause between a cache hit and its revalidation fetch.
const DefaultRevalidateDelay = 100 * time.Millisecond

// ErrClosed is reported by revalidations abandoned because the coordinator closed.
var ErrClosed = errors.New("fetch: coordinator closed")

// Remote is the catalog API.
type Remote interface {
	GetTour(ctx context.Context, id string) (*tourbook.Tour, error)
	ListTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error)
}

// Cache is the local tour cache. *tourcache.Policy satisfies it.
type Cache interface {
	Lookup(ctx context.Context, id string) (*tourbook.Tour, tourcache.Outcome)
	GetMany(ctx context.Context, f tourbook.Filters) []tourbook.Tour
	SetOne(ctx context.Context, t *tourbook.Tour)
	SetMany(ctx context.Context, ts []tourbook.Tour)
	GetPage(ctx context.Context, query string) *tourbook.CachedPage
	SetPage(ctx context.Context, query string, r *tourbook.ListResult)
}

// Recorder observes remote calls and revalidations. telemetry.Metrics satisfies it.
type Recorder interface {
	RemoteCall(op string, seconds float64, err error)
	Revalidation(kind, result string)
}

// Mode selects how a read treats the cache.
type Mode int

const (
	// CacheFirst serves fresh cached data and revalidates in the background.
	CacheFirst Mode = iota
	// Bypass always fetches from the catalog (explicit refetch).
	Bypass
)

// TourResult is the outcome of a single-tour read. Tour is nil when the
// catalog reports the tour does not exist.
type TourResult struct {
	Tour         *tourbook.Tour
	FromCache    bool
	Revalidation *Revalidation // non-nil only when FromCache
}

// ToursResult is the outcome of a collection read.
type ToursResult struct {
	tourbook.ListResult
	FromCache    bool
	Revalidation *Revalidation // non-nil only when FromCache
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRevalidateDelay overrides DefaultRevalidateDelay.
func WithRevalidateDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.delay = d }
}

// WithRecorder reports remote calls and revalidations to r.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.rec = r }
}

// Coordinator implements the cache-first fetch protocol.
type Coordinator struct {
	remote Remote
	cache  Cache
	delay  time.Duration
	rec    Recorder
	tracer trace.Tracer
	group  singleflight.Group

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
	tasks  sync.WaitGroup
}

// New returns a Coordinator reading through cache to remote.
func New(remote Remote, cache Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		remote: remote,
		cache:  cache,
		delay:  DefaultRevalidateDelay,
		rec:    nopRecorder{},
		tracer: otel.Tracer("github.com/eugener/tourbook/internal/fetch"),
		stop:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Tour reads one tour. The id is validated before any I/O. A tour the
// catalog does not know yields a nil Tour and a nil error. Network faults
// are returned wrapping tourbook.ErrNetwork and leave the cache untouched.
func (c *Coordinator) Tour(ctx context.Context, id string, mode Mode) (TourResult, error) {
	if err := tourbook.ValidateID(id); err != nil {
		return TourResult{}, err
	}

	if mode == CacheFirst {
		if t, outcome := c.cache.Lookup(ctx, id); outcome == tourcache.Hit {
			rv := c.revalidate(ctx, "tour", func(ctx context.Context) error {
				_, err := c.fetchTour(ctx, id)
				return err
			})
			return TourResult{Tour: t, FromCache: true, Revalidation: rv}, nil
		}
	}

	t, err := c.fetchTour(ctx, id)
	if errors.Is(err, tourbook.ErrNotFound) {
		return TourResult{}, nil
	}
	if err != nil {
		return TourResult{}, err
	}
	return TourResult{Tour: t}, nil
}

// Tours reads one page of tours. The cache answers only when the catalog
// page for this exact query was recorded within the TTL and every tour it
// listed is still cached and matches the query. The page then keeps the
// catalog's order and totals.
func (c *Coordinator) Tours(ctx context.Context, q tourbook.ListQuery, mode Mode) (ToursResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = tourbook.DefaultLimit
	}
	q.Limit = min(q.Limit, tourbook.MaxLimit)

	if mode == CacheFirst {
		if res, ok := c.cachedPage(ctx, q); ok {
			res.Revalidation = c.revalidate(ctx, "tours", func(ctx context.Context) error {
				_, err := c.fetchTours(ctx, q)
				return err
			})
			return res, nil
		}
	}

	res, err := c.fetchTours(ctx, q)
	if err != nil {
		return ToursResult{}, err
	}
	return ToursResult{ListResult: *res}, nil
}

func (c *Coordinator) cachedPage(ctx context.Context, q tourbook.ListQuery) (ToursResult, bool) {
	pg := c.cache.GetPage(ctx, q.Encode())
	if pg == nil || len(pg.IDs) == 0 {
		return ToursResult{}, false
	}
	f := q.Filters()
	byID := make(map[string]tourbook.Tour, len(pg.IDs))
	for _, t := range c.cache.GetMany(ctx, f) {
		if f.Matches(&t) {
			byID[t.ID] = t
		}
	}
	tours := make([]tourbook.Tour, 0, len(pg.IDs))
	for _, id := range pg.IDs {
		t, ok := byID[id]
		if !ok {
			return ToursResult{}, false
		}
		tours = append(tours, t)
	}
	return ToursResult{
		ListResult: tourbook.ListResult{
			Tours:      tours,
			Total:      pg.Total,
			Page:       q.Page,
			TotalPages: pg.TotalPages,
		},
		FromCache: true,
	}, true
}

// fetchTour fetches one tour from the catalog, coalescing concurrent calls
// for the same id, and stores it on success.
func (c *Coordinator) fetchTour(ctx context.Context, id string) (*tourbook.Tour, error) {
	v, err := c.shared(ctx, "tour:"+id, func(ctx context.Context) (any, error) {
		t, err := c.call(ctx, "get_tour", attribute.String("tour.id", id), func(ctx context.Context) (any, error) {
			return c.remote.GetTour(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		tour, _ := t.(*tourbook.Tour)
		if tour == nil {
			return nil, fmt.Errorf("%w: tour %s", tourbook.ErrNotFound, id)
		}
		c.cache.SetOne(ctx, tour)
		return tour, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tourbook.Tour), nil
}

// fetchTours is fetchTour for a collection query. The stored tours and page
// record are the ones in this response.
func (c *Coordinator) fetchTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error) {
	key := q.Encode()
	v, err := c.shared(ctx, "tours:"+key, func(ctx context.Context) (any, error) {
		r, err := c.call(ctx, "list_tours", attribute.String("tours.query", key), func(ctx context.Context) (any, error) {
			return c.remote.ListTours(ctx, q)
		})
		if err != nil {
			return nil, err
		}
		res, _ := r.(*tourbook.ListResult)
		if res == nil {
			return nil, fmt.Errorf("%w: catalog returned no result", tourbook.ErrNetwork)
		}
		if res.Tours == nil {
			res.Tours = []tourbook.Tour{}
		}
		c.cache.SetMany(ctx, res.Tours)
		c.cache.SetPage(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a result must not alias each other's slice.
	res := *v.(*tourbook.ListResult)
	res.Tours = append([]tourbook.Tour(nil), res.Tours...)
	if res.Tours == nil {
		res.Tours = []tourbook.Tour{}
	}
	return &res, nil
}

// shared runs fn once per key among concurrent callers. fn runs detached from
// the caller's cancellation so a started storage write always completes; a
// caller whose ctx ends stops waiting and gets ctx.Err().
func (c *Coordinator) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) { return fn(detached) })
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// call wraps a remote call in a span, records metrics and classifies the error.
func (c *Coordinator) call(ctx context.Context, op string, attr attribute.KeyValue, fn func(context.Context) (any, error)) (any, error) {
	ctx, span := c.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(attr))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	c.rec.RemoteCall(op, time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, classify(err)
	}
	return v, nil
}

// classify leaves domain errors alone and tags everything else as a network fault.
func classify(err error) error {
	switch {
	case errors.Is(err, tourbook.ErrNotFound),
		errors.Is(err, tourbook.ErrValidation),
		errors.Is(err, tourbook.ErrNetwork):
		return err
	default:
		return fmt.Errorf("%w: %w", tourbook.ErrNetwork, err)
	}
}

// Close stops scheduling revalidations, abandons those still waiting out
// their delay and waits for fetches already under way to finish.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopRecorder struct{}

func (nopRecorder) RemoteCall(string, float64, error) {}
func (nopRecorder) Revalidation(string, string)       {}

// logAttrs pulls the request id into revalidation logs.
func logAttrs(ctx context.Context, attrs ...slog.Attr) []slog.Attr {
	if id := tourbook.RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	return attrs
}
