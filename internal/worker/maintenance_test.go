package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/testutil"
	"github.com/eugener/tourbook/internal/tourcache"
)

func TestCacheJanitorSweepsOnStart(t *testing.T) {
	t.Parallel()
	store := testutil.NewFakeStore()
	now := time.Now()
	ctx := context.Background()

	store.PutCached(ctx, &tourbook.CachedTour{Tour: tourbook.Tour{ID: "old"}, CachedAt: now.Add(-10 * time.Minute).UnixMilli()})
	store.PutCached(ctx, &tourbook.CachedTour{Tour: tourbook.Tour{ID: "new"}, CachedAt: now.UnixMilli()})

	j := NewCacheJanitor(tourcache.New(store), time.Hour)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- j.Run(runCtx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if store.Len() != 1 {
		t.Fatalf("rows = %d, want 1", store.Len())
	}
	if row, _ := store.GetCached(ctx, "new"); row == nil {
		t.Error("janitor removed a fresh tour")
	}
}

func TestCacheJanitorDefaultInterval(t *testing.T) {
	t.Parallel()
	if j := NewCacheJanitor(nil, 0); j.interval != DefaultJanitorInterval {
		t.Errorf("interval = %v, want %v", j.interval, DefaultJanitorInterval)
	}
}

type fakeBreakers struct {
	cutoff time.Time
}

func (f *fakeBreakers) EvictStale(cutoff time.Time) int {
	f.cutoff = cutoff
	return 1
}

func TestBreakerEvictorCutoff(t *testing.T) {
	t.Parallel()
	fb := &fakeBreakers{}
	e := NewBreakerEvictor(fb)
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	e.evict(context.Background())
	if want := fixed.Add(-breakerIdleTimeout); !fb.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", fb.cutoff, want)
	}
}

type countingResolver struct {
	refreshes atomic.Int32
	cleared   atomic.Bool
}

func (r *countingResolver) Refresh(clearUnused bool) {
	r.refreshes.Add(1)
	r.cleared.Store(clearUnused)
}

func TestDNSRefresher(t *testing.T) {
	t.Parallel()
	r := &countingResolver{}
	d := NewDNSRefresher(r, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.refreshes.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if r.refreshes.Load() < 2 {
		t.Errorf("refreshes = %d, want at least 2", r.refreshes.Load())
	}
	if !r.cleared.Load() {
		t.Error("refresh should clear unused entries")
	}
	if NewDNSRefresher(r, 0).interval != dnsRefreshInterval {
		t.Error("zero interval should use the default")
	}
}
