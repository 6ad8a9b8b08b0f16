// Package tourcache layers TTL expiry and filter-aware reads over the local
// record store. Storage faults never escape this package: reads degrade to a
// miss and writes to a no-op, so callers only ever observe absence of data.
package tourcache

import (
	"context"
	"log/slog"
	"time"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/storage"
)

// TTL is how long a cached tour stays readable after it was written.
const TTL = 5 * time.Minute

// Outcome classifies a single-tour lookup.
type Outcome int

const (
	Miss Outcome = iota
	Hit
	Expired
	Fault
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Expired:
		return "expired"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// Stats is a read-only snapshot of the cache table.
type Stats struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
}

// Recorder observes lookup outcomes. telemetry.Metrics satisfies it.
type Recorder interface {
	CacheLookup(outcome string)
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// WithRecorder reports lookup outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(p *Policy) { p.rec = r }
}

// Policy is the TTL cache over a storage.RecordStore.
type Policy struct {
	store storage.RecordStore
	now   func() time.Time
	rec   Recorder
}

// New returns a Policy backed by store.
func New(store storage.RecordStore, opts ...Option) *Policy {
	p := &Policy{store: store, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Policy) nowMs() int64 { return p.now().UnixMilli() }

// cutoff is the oldest cached_at that is still fresh.
func (p *Policy) cutoff() int64 { return p.nowMs() - TTL.Milliseconds() }

// GetOne returns the cached tour for id, or nil when absent, expired or unreadable.
func (p *Policy) GetOne(ctx context.Context, id string) *tourbook.Tour {
	t, _ := p.Lookup(ctx, id)
	return t
}

// Lookup is GetOne with the reason for a miss. Expired rows are deleted.
func (p *Policy) Lookup(ctx context.Context, id string) (*tourbook.Tour, Outcome) {
	t, outcome := p.lookup(ctx, id)
	if p.rec != nil {
		p.rec.CacheLookup(outcome.String())
	}
	return t, outcome
}

func (p *Policy) lookup(ctx context.Context, id string) (*tourbook.Tour, Outcome) {
	ct, err := p.store.GetCached(ctx, id)
	if err != nil {
		logFault(ctx, "get", err)
		return nil, Fault
	}
	if ct == nil {
		return nil, Miss
	}
	if p.nowMs()-ct.CachedAt >= TTL.Milliseconds() {
		if err := p.store.DeleteCached(ctx, id); err != nil {
			logFault(ctx, "delete expired", err)
		}
		return nil, Expired
	}
	t := ct.Tour
	return &t, Hit
}

// GetMany returns every fresh cached tour that passes the location and category
// filters. The price range is left to the caller.
func (p *Policy) GetMany(ctx context.Context, f tourbook.Filters) []tourbook.Tour {
	out := []tourbook.Tour{}
	for ct, err := range p.store.QueryCachedAbove(ctx, p.cutoff()) {
		if err != nil {
			logFault(ctx, "get many", err)
			return []tourbook.Tour{}
		}
		if !f.MatchesLocationCategory(&ct.Tour) {
			continue
		}
		out = append(out, ct.Tour)
	}
	return out
}

// SetOne stamps t with the current time and upserts it.
func (p *Policy) SetOne(ctx context.Context, t *tourbook.Tour) {
	ct := tourbook.CachedTour{Tour: *t, CachedAt: p.nowMs()}
	if err := p.store.PutCached(ctx, &ct); err != nil {
		logFault(ctx, "set", err)
	}
}

// SetMany stamps every tour with the current time and upserts them.
func (p *Policy) SetMany(ctx context.Context, ts []tourbook.Tour) {
	if len(ts) == 0 {
		return
	}
	now := p.nowMs()
	rows := make([]tourbook.CachedTour, len(ts))
	for i := range ts {
		rows[i] = tourbook.CachedTour{Tour: ts[i], CachedAt: now}
	}
	if err := p.store.BulkPutCached(ctx, rows); err != nil {
		logFault(ctx, "set many", err)
	}
}

// GetPage returns the catalog page recorded for the canonical query, or nil
// when absent, expired or unreadable. Pages expire with the same TTL as tours.
func (p *Policy) GetPage(ctx context.Context, query string) *tourbook.CachedPage {
	pg, err := p.store.GetCachedPage(ctx, query)
	if err != nil {
		logFault(ctx, "get page", err)
		return nil
	}
	if pg == nil || pg.CachedAt <= p.cutoff() {
		return nil
	}
	return pg
}

// SetPage records which tours the catalog returned for query, and the totals
// it reported.
func (p *Policy) SetPage(ctx context.Context, query string, r *tourbook.ListResult) {
	ids := make([]string, len(r.Tours))
	for i := range r.Tours {
		ids[i] = r.Tours[i].ID
	}
	pg := tourbook.CachedPage{
		Query:      query,
		IDs:        ids,
		Total:      r.Total,
		TotalPages: r.TotalPages,
		CachedAt:   p.nowMs(),
	}
	if err := p.store.PutCachedPage(ctx, &pg); err != nil {
		logFault(ctx, "set page", err)
	}
}

// Delete removes one cached tour.
func (p *Policy) Delete(ctx context.Context, id string) {
	if err := p.store.DeleteCached(ctx, id); err != nil {
		logFault(ctx, "delete", err)
	}
}

// Clear removes every cached tour and page record.
func (p *Policy) Clear(ctx context.Context) {
	if err := p.store.ClearCached(ctx); err != nil {
		logFault(ctx, "clear", err)
	}
}

// ClearExpired removes rows older than the TTL and returns how many went.
func (p *Policy) ClearExpired(ctx context.Context) int {
	n, err := p.store.DeleteCachedBelow(ctx, p.cutoff())
	if err != nil {
		logFault(ctx, "clear expired", err)
		return 0
	}
	return int(n)
}

// Stats counts total and expired rows without modifying anything.
func (p *Policy) Stats(ctx context.Context) Stats {
	total, err := p.store.CountCached(ctx)
	if err != nil {
		logFault(ctx, "stats", err)
		return Stats{}
	}
	expired, err := p.store.CountCachedBelow(ctx, p.cutoff())
	if err != nil {
		logFault(ctx, "stats", err)
		return Stats{}
	}
	return Stats{Total: total, Expired: expired}
}

func logFault(ctx context.Context, op string, err error) {
	slog.LogAttrs(ctx, slog.LevelError, "tour cache fault",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
