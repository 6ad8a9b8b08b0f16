// Package state holds the browsing state shown to the user: the loaded tour
// list with its filters and pagination, and single-tour views. State is
// explicit and injected; listeners are notified after every update.
package state

import (
	"context"
	"math"
	"slices"
	"sync"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/fetch"
)

// Fetcher is the fetch coordinator.
type Fetcher interface {
	Tour(ctx context.Context, id string, mode fetch.Mode) (fetch.TourResult, error)
	Tours(ctx context.Context, q tourbook.ListQuery, mode fetch.Mode) (fetch.ToursResult, error)
}

// Cache is the part of the tour cache the state clears.
type Cache interface {
	Clear(ctx context.Context)
	Delete(ctx context.Context, id string)
}

// Pagination tracks the loaded page. Page is 1-indexed. Limit is the page
// size that produced it; zero means the state's configured size.
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
	Limit      int `json:"limit,omitempty"`
}

// Snapshot is a consistent copy of the AppState.
type Snapshot struct {
	Tours      []tourbook.Tour
	Loading    bool
	Err        error
	FromCache  bool
	Filters    tourbook.Filters
	Pagination Pagination
	// Revalidation is the background refresh started by the last cache hit.
	Revalidation *fetch.Revalidation
}

// AppState is the tour list state container.
type AppState struct {
	fetcher Fetcher
	cache   Cache
	filters FilterStore
	limit   int

	mu        sync.Mutex
	gen       uint64 // latest load cycle; only it may publish
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewAppState returns an empty state. limit is the page size for list loads.
func NewAppState(f Fetcher, c Cache, fs FilterStore, limit int) *AppState {
	if limit < 1 {
		limit = tourbook.DefaultLimit
	}
	return &AppState{
		fetcher:   f,
		cache:     c,
		filters:   fs,
		limit:     limit,
		snap:      Snapshot{Tours: []tourbook.Tour{}, Pagination: Pagination{Page: 1}},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn to receive a snapshot after every update and
// returns a function that removes it.
func (s *AppState) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *AppState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *AppState) copyLocked() Snapshot {
	c := s.snap
	c.Tours = slices.Clone(s.snap.Tours)
	if s.snap.Filters.PriceRange != nil {
		pr := *s.snap.Filters.PriceRange
		c.Filters.PriceRange = &pr
	}
	return c
}

// update applies fn under the lock, then notifies listeners outside it.
func (s *AppState) update(fn func(*Snapshot) bool) {
	s.mu.Lock()
	if !fn(&s.snap) {
		s.mu.Unlock()
		return
	}
	snap := s.copyLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		fns = append(fns, l)
	}
	s.mu.Unlock()

	for _, l := range fns {
		l(snap)
	}
}

// --- Filters ---

// LoadFilters restores the persisted filters.
func (s *AppState) LoadFilters(ctx context.Context) error {
	f, err := s.filters.LoadFilters(ctx)
	if err != nil {
		return err
	}
	s.update(func(st *Snapshot) bool {
		st.Filters = f
		return true
	})
	return nil
}

// Filters returns the active filters.
func (s *AppState) Filters() tourbook.Filters {
	return s.Snapshot().Filters
}

// UpdateFilters applies patch to the filters, persists them and moves back
// to the first page. The list itself is not reloaded.
func (s *AppState) UpdateFilters(ctx context.Context, patch func(*tourbook.Filters)) error {
	f := s.Filters()
	patch(&f)
	if err := s.filters.SaveFilters(ctx, f); err != nil {
		return err
	}
	s.update(func(st *Snapshot) bool {
		st.Filters = f
		st.Pagination.Page = 1
		return true
	})
	return nil
}

// ResetFilters clears every filter.
func (s *AppState) ResetFilters(ctx context.Context) error {
	return s.UpdateFilters(ctx, func(f *tourbook.Filters) { *f = tourbook.Filters{} })
}

// FilteredTours applies the active filters, price range included, to the
// loaded tours.
func (s *AppState) FilteredTours() []tourbook.Tour {
	snap := s.Snapshot()
	out := []tourbook.Tour{}
	for _, t := range snap.Tours {
		if snap.Filters.Matches(&t) {
			out = append(out, t)
		}
	}
	return out
}

// --- Loading ---

// Refetch loads q cache-first.
func (s *AppState) Refetch(ctx context.Context, q tourbook.ListQuery) error {
	return s.Load(ctx, q, fetch.CacheFirst)
}

// Load runs one load cycle for q. Starting a cycle supersedes any cycle
// still in flight: the older one's result is dropped. On failure the
// previously loaded tours stay in place and Err is set.
func (s *AppState) Load(ctx context.Context, q tourbook.ListQuery, mode fetch.Mode) error {
	if q.Limit < 1 {
		q.Limit = s.limit
	}
	q.Limit = min(q.Limit, tourbook.MaxLimit)
	if q.Page < 1 {
		q.Page = 1
	}

	var gen uint64
	s.update(func(st *Snapshot) bool {
		s.gen++
		gen = s.gen
		st.Loading = true
		st.Err = nil
		return true
	})

	res, err := s.fetcher.Tours(ctx, q, mode)

	s.update(func(st *Snapshot) bool {
		if gen != s.gen {
			return false
		}
		st.Loading = false
		if err != nil {
			st.Err = err
			return true
		}
		st.Tours = res.Tours
		st.FromCache = res.FromCache
		st.Revalidation = res.Revalidation
		st.Pagination = Pagination{Page: res.Page, TotalPages: res.TotalPages, Total: res.Total, Limit: q.Limit}
		return true
	})
	return err
}

// RefetchWithFilters reloads the current page with the active filters, at
// the page size it was loaded with.
func (s *AppState) RefetchWithFilters(ctx context.Context) error {
	snap := s.Snapshot()
	return s.Refetch(ctx, s.query(snap.Filters, snap.Pagination.Page, s.pageLimit(snap.Pagination)))
}

// LoadNextPage loads the following page at the current page size. It is a
// no-op on the last page.
func (s *AppState) LoadNextPage(ctx context.Context) error {
	snap := s.Snapshot()
	if snap.Pagination.Page >= snap.Pagination.TotalPages {
		return nil
	}
	return s.Refetch(ctx, s.query(snap.Filters, snap.Pagination.Page+1, s.pageLimit(snap.Pagination)))
}

// RestorePagination seeds the pagination saved by an earlier session, so
// LoadNextPage continues from there.
func (s *AppState) RestorePagination(p Pagination) {
	s.update(func(st *Snapshot) bool {
		st.Pagination = p
		return true
	})
}

// Query returns the list query for page under the active filters, at the
// configured page size.
func (s *AppState) Query(page int) tourbook.ListQuery {
	return s.query(s.Filters(), page, s.limit)
}

// HasNextPage reports whether a page follows the loaded one.
func (s *AppState) HasNextPage() bool {
	p := s.Snapshot().Pagination
	return p.Page < p.TotalPages
}

// IsEmpty reports whether nothing is loaded and nothing is loading.
func (s *AppState) IsEmpty() bool {
	snap := s.Snapshot()
	return !snap.Loading && len(snap.Tours) == 0
}

// ClearCache drops every cached tour. Loaded tours are kept.
func (s *AppState) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
}

func (s *AppState) pageLimit(p Pagination) int {
	if p.Limit > 0 {
		return p.Limit
	}
	return s.limit
}

func (s *AppState) query(f tourbook.Filters, page, limit int) tourbook.ListQuery {
	q := tourbook.ListQuery{
		Page:     page,
		Limit:    limit,
		Location: f.Location,
		Category: f.Category,
	}
	if f.PriceRange != nil {
		if lo := f.PriceRange[0]; isBound(lo) {
			q.MinPrice = &lo
		}
		if hi := f.PriceRange[1]; isBound(hi) {
			q.MaxPrice = &hi
		}
	}
	return q
}

// isBound reports whether v constrains a price; open ends are stored as
// infinities or ±MaxFloat64 since JSON cannot carry infinities.
func isBound(v float64) bool {
	return !math.IsInf(v, 0) && math.Abs(v) != math.MaxFloat64
}
