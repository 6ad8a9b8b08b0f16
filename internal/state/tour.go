package state

import (
	"context"
	"sync"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/fetch"
)

// TourSnapshot is a consistent copy of a TourView.
type TourSnapshot struct {
	Tour      *tourbook.Tour
	Loading   bool
	Err       error
	FromCache bool
	// Revalidation is the background refresh started by the last cache hit.
	Revalidation *fetch.Revalidation
}

// TourView is the state of a single tour page.
type TourView struct {
	id      string
	fetcher Fetcher
	cache   Cache

	mu   sync.Mutex
	gen  uint64
	snap TourSnapshot
}

// NewTourView returns a view of tour id. Nothing is loaded until Load.
func NewTourView(id string, f Fetcher, c Cache) *TourView {
	return &TourView{id: id, fetcher: f, cache: c}
}

// Snapshot returns a copy of the view.
func (v *TourView) Snapshot() TourSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.snap
	if s.Tour != nil {
		t := *s.Tour
		s.Tour = &t
	}
	return s
}

// Load reads the tour cache-first.
func (v *TourView) Load(ctx context.Context) error {
	return v.load(ctx, fetch.CacheFirst)
}

// Refetch reads the tour from the catalog, bypassing the cache.
func (v *TourView) Refetch(ctx context.Context) error {
	return v.load(ctx, fetch.Bypass)
}

// ClearCache drops the cached copy of this tour.
func (v *TourView) ClearCache(ctx context.Context) {
	v.cache.Delete(ctx, v.id)
}

func (v *TourView) load(ctx context.Context, mode fetch.Mode) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.snap.Loading = true
	v.snap.Err = nil
	v.mu.Unlock()

	res, err := v.fetcher.Tour(ctx, v.id, mode)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return err
	}
	v.snap.Loading = false
	if err != nil {
		v.snap.Err = err
		return err
	}
	v.snap.Tour = res.Tour
	v.snap.FromCache = res.FromCache
	v.snap.Revalidation = res.Revalidation
	return nil
}
