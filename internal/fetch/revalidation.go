package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tourbook "github.com/eugener/tourbook/internal"
)

// Revalidation is a background refresh started by a cache hit. It never
// changes the result already returned; its only effect is a cache write.
type Revalidation struct {
	done chan struct{}
	err  error
}

// Done is closed when the revalidation has finished.
func (r *Revalidation) Done() <-chan struct{} { return r.done }

// Err returns the outcome once Done is closed, and nil before.
func (r *Revalidation) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the revalidation finishes or ctx ends.
func (r *Revalidation) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) revalidate(ctx context.Context, kind string, fetch func(context.Context) error) *Revalidation {
	rv := &Revalidation{done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		rv.err = ErrClosed
		close(rv.done)
		return rv
	}
	c.tasks.Add(1)
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer c.tasks.Done()
		defer close(rv.done)
		rv.err = c.runRevalidation(ctx, kind, fetch)
	}()
	return rv
}

func (c *Coordinator) runRevalidation(ctx context.Context, kind string, fetch func(context.Context) error) error {
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.stop:
		c.rec.Revalidation(kind, "skipped")
		return ErrClosed
	}

	err := fetch(ctx)
	switch {
	case err == nil:
		c.rec.Revalidation(kind, "ok")
		slog.LogAttrs(ctx, slog.LevelDebug, "revalidated", logAttrs(ctx, slog.String("kind", kind))...)
	case errors.Is(err, tourbook.ErrNotFound):
		c.rec.Revalidation(kind, "not_found")
	default:
		c.rec.Revalidation(kind, "error")
		slog.LogAttrs(ctx, slog.LevelWarn, "revalidation failed", logAttrs(ctx,
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)...)
	}
	return err
}
