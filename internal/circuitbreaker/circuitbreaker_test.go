package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig(c *clock) Config {
	return Config{
		ErrorThreshold: 0.30,
		MinSamples:     10,
		WindowSeconds:  60,
		OpenTimeout:    30 * time.Second,
		Now:            c.Now,
	}
}

func TestSlidingWindow_RecordAndErrorRate(t *testing.T) {
	t.Parallel()

	w := newSlidingWindow(60)
	now := time.Now()
	for range 7 {
		w.Record(0, now)
	}
	for range 3 {
		w.Record(1.0, now)
	}

	rate, samples := w.ErrorRate(now)
	if samples != 10 {
		t.Fatalf("samples = %d, want 10", samples)
	}
	if rate < 0.29 || rate > 0.31 {
		t.Fatalf("rate = %f, want ~0.30", rate)
	}
}

func TestSlidingWindow_Expiry(t *testing.T) {
	t.Parallel()

	w := newSlidingWindow(5)
	base := time.Now()
	w.Record(1.0, base)

	rate, samples := w.ErrorRate(base.Add(6 * time.Second))
	if samples != 0 || rate != 0 {
		t.Fatalf("samples=%d rate=%f, want expired", samples, rate)
	}
}

func TestSlidingWindow_InvalidSize(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1, 100} {
		if w := newSlidingWindow(n); w.size != 60 {
			t.Errorf("newSlidingWindow(%d).size = %d, want 60", n, w.size)
		}
	}
}

func TestBreaker_OpensOnThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker(testConfig(newClock()))
	for range 7 {
		b.RecordSuccess()
	}
	for range 3 {
		b.RecordError(1.0)
	}

	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if b.Allow() {
		t.Fatal("open breaker should reject")
	}
}

func TestBreaker_MinSamplesRequired(t *testing.T) {
	t.Parallel()

	b := NewBreaker(testConfig(newClock()))
	for range 9 {
		b.RecordError(1.0)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed (below min samples)", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		probeErr  bool
		wantState State
	}{
		{"probe succeeds", false, StateClosed},
		{"probe fails", true, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clk := newClock()
			b := NewBreaker(testConfig(clk))
			for range 10 {
				b.RecordError(1.0)
			}
			if b.Allow() {
				t.Fatal("should reject before open timeout")
			}

			clk.Advance(30 * time.Second)
			if !b.Allow() {
				t.Fatal("should allow probe after open timeout")
			}
			if b.State() != StateHalfOpen {
				t.Fatalf("state = %v, want half_open", b.State())
			}
			if b.Allow() {
				t.Fatal("should reject a second probe")
			}

			if tt.probeErr {
				b.RecordError(1.0)
			} else {
				b.RecordSuccess()
			}
			if b.State() != tt.wantState {
				t.Fatalf("state = %v, want %v", b.State(), tt.wantState)
			}
		})
	}
}

func TestBreaker_WeightedErrors(t *testing.T) {
	t.Parallel()

	b := NewBreaker(testConfig(newClock()))
	// 4 x 0.5 over 10 requests = 20%.
	for range 6 {
		b.RecordSuccess()
	}
	for range 4 {
		b.RecordError(0.5)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
	// (2.0 + 3.0) / 12 = 41.7%.
	for range 2 {
		b.RecordError(1.5)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
}

func TestBreaker_Call(t *testing.T) {
	t.Parallel()

	cfg := testConfig(newClock())
	cfg.MinSamples = 2
	cfg.ErrorThreshold = 0.5
	b := NewBreaker(cfg)

	notFound := &statusError{404}
	for range 5 {
		if err := b.Call(func() error { return notFound }); !errors.Is(err, notFound) {
			t.Fatalf("Call err = %v, want passthrough", err)
		}
	}
	if b.State() != StateClosed {
		t.Fatalf("404s tripped the breaker: %v", b.State())
	}

	boom := &statusError{503}
	for range 10 {
		_ = b.Call(func() error { return boom })
	}
	ran := false
	err := b.Call(func() error { ran = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("Call on open breaker = %v, want ErrOpen", err)
	}
	if ran {
		t.Fatal("open breaker ran the call")
	}
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	b := NewBreaker(Config{ErrorThreshold: 0.50, MinSamples: 100, WindowSeconds: 60, OpenTimeout: time.Millisecond})
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 100 {
				b.Allow()
				b.RecordSuccess()
				b.RecordError(0.5)
				_ = b.State()
				_ = b.LastUsed()
			}
		})
	}
	wg.Wait()
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
