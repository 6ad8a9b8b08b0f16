package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/eugener/tourbook/internal/tourcache"
)

// DefaultJanitorInterval is how often expired tours are swept by default.
const DefaultJanitorInterval = time.Minute

// ExpiringCache is the part of the tour cache the janitor drives.
type ExpiringCache interface {
	ClearExpired(ctx context.Context) int
	Stats(ctx context.Context) tourcache.Stats
}

// CacheJanitor periodically deletes cached tours older than the TTL, so
// expired rows do not wait for a read to be removed.
type CacheJanitor struct {
	cache    ExpiringCache
	interval time.Duration
}

// NewCacheJanitor creates a janitor sweeping every interval.
func NewCacheJanitor(cache ExpiringCache, interval time.Duration) *CacheJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &CacheJanitor{cache: cache, interval: interval}
}

func (j *CacheJanitor) Name() string { return "cache_janitor" }

// Run sweeps once immediately, then on every tick.
func (j *CacheJanitor) Run(ctx context.Context) error {
	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *CacheJanitor) sweep(ctx context.Context) {
	n := j.cache.ClearExpired(ctx)
	if n == 0 {
		return
	}
	st := j.cache.Stats(ctx)
	slog.LogAttrs(ctx, slog.LevelDebug, "expired tours removed",
		slog.Int("removed", n),
		slog.Int("remaining", st.Total),
	)
}
