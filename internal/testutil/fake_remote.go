package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/catalog"
)

// FakeRemote is an in-memory catalog implementing fetch.Remote. It counts
// calls and can be made to fail or to block until released.
type FakeRemote struct {
	mu    sync.Mutex
	tours []tourbook.Tour
	err   error
	gate  chan struct{}

	getCalls  atomic.Int32
	listCalls atomic.Int32
}

// NewFakeRemote returns a FakeRemote serving tours in the given order.
func NewFakeRemote(tours ...tourbook.Tour) *FakeRemote {
	return &FakeRemote{tours: tours}
}

// SetErr makes every call fail with err (nil restores normal operation).
func (f *FakeRemote) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// SetTours replaces the catalog contents.
func (f *FakeRemote) SetTours(tours ...tourbook.Tour) {
	f.mu.Lock()
	f.tours = tours
	f.mu.Unlock()
}

// Block holds every subsequent call until the returned release func runs.
func (f *FakeRemote) Block() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// GetCalls returns how many GetTour calls were made.
func (f *FakeRemote) GetCalls() int { return int(f.getCalls.Load()) }

// ListCalls returns how many ListTours calls were made.
func (f *FakeRemote) ListCalls() int { return int(f.listCalls.Load()) }

func (f *FakeRemote) wait(ctx context.Context) ([]tourbook.Tour, error) {
	f.mu.Lock()
	gate, err, tours := f.gate, f.err, f.tours
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return tours, err
}

// GetTour returns the tour with id or an error wrapping tourbook.ErrNotFound.
func (f *FakeRemote) GetTour(ctx context.Context, id string) (*tourbook.Tour, error) {
	f.getCalls.Add(1)
	tours, err := f.wait(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tours {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("fake catalog: tour %s: %w", id, tourbook.ErrNotFound)
}

// ListTours filters and paginates the catalog the way the server does.
func (f *FakeRemote) ListTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error) {
	f.listCalls.Add(1)
	tours, err := f.wait(ctx)
	if err != nil {
		return nil, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = tourbook.DefaultLimit
	}
	q.Limit = min(q.Limit, tourbook.MaxLimit)
	filters := q.Filters()
	matched := []tourbook.Tour{}
	for _, t := range tours {
		if filters.Matches(&t) {
			matched = append(matched, t)
		}
	}
	page, totalPages := tourbook.Paginate(matched, q.Page, q.Limit)
	return &tourbook.ListResult{
		Tours:      append([]tourbook.Tour{}, page...),
		Total:      len(matched),
		Page:       q.Page,
		TotalPages: totalPages,
	}, nil
}

// DemoTours returns the catalog's demo tours without their detail fields.
func DemoTours() []tourbook.Tour {
	details := catalog.DemoTours()
	out := make([]tourbook.Tour, len(details))
	for i := range details {
		out[i] = details[i].Tour
	}
	return out
}
