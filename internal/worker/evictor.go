package worker

import (
	"context"
	"log/slog"
	"time"
)

const (
	breakerEvictInterval = time.Minute
	breakerIdleTimeout   = 10 * time.Minute
)

// BreakerStore is satisfied by circuitbreaker.Registry.
type BreakerStore interface {
	EvictStale(cutoff time.Time) int
}

// BreakerEvictor drops circuit breakers for hosts idle longer than the timeout.
type BreakerEvictor struct {
	breakers BreakerStore
	interval time.Duration
	idle     time.Duration
	now      func() time.Time
}

// NewBreakerEvictor creates an evictor with the default interval and idle timeout.
func NewBreakerEvictor(b BreakerStore) *BreakerEvictor {
	return &BreakerEvictor{
		breakers: b,
		interval: breakerEvictInterval,
		idle:     breakerIdleTimeout,
		now:      time.Now,
	}
}

func (e *BreakerEvictor) Name() string { return "breaker_evictor" }

// Run evicts idle breakers on every tick until ctx is cancelled.
func (e *BreakerEvictor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.evict(ctx)
		}
	}
}

func (e *BreakerEvictor) evict(ctx context.Context) {
	if n := e.breakers.EvictStale(e.now().Add(-e.idle)); n > 0 {
		slog.LogAttrs(ctx, slog.LevelDebug, "idle circuit breakers evicted", slog.Int("count", n))
	}
}
