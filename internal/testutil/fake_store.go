package testutil

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	tourbook "github.com/eugener/tourbook/internal"
)

// FakeStore is an in-memory storage.RecordStore and storage.StateStore for
// testing. Setting a fault makes every call fail with a wrapped ErrStorage.
type FakeStore struct {
	mu     sync.Mutex
	cached map[string]tourbook.CachedTour
	pages  map[string]tourbook.CachedPage
	state  map[string][]byte
	fault  error
	puts   int
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		cached: make(map[string]tourbook.CachedTour),
		pages:  make(map[string]tourbook.CachedPage),
		state:  make(map[string][]byte),
	}
}

// SetFault makes subsequent calls fail with err (nil clears it).
func (s *FakeStore) SetFault(err error) {
	s.mu.Lock()
	s.fault = err
	s.mu.Unlock()
}

// Puts returns how many rows have been written.
func (s *FakeStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Len returns the number of cached rows.
func (s *FakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cached)
}

func (s *FakeStore) err(op string) error {
	if s.fault == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", tourbook.ErrStorage, op, s.fault)
}

// --- RecordStore ---

func (s *FakeStore) GetCached(_ context.Context, id string) (*tourbook.CachedTour, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("get cached"); err != nil {
		return nil, err
	}
	ct, ok := s.cached[id]
	if !ok {
		return nil, nil
	}
	return &ct, nil
}

func (s *FakeStore) PutCached(_ context.Context, t *tourbook.CachedTour) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("put cached"); err != nil {
		return err
	}
	s.cached[t.ID] = *t
	s.puts++
	return nil
}

func (s *FakeStore) BulkPutCached(_ context.Context, ts []tourbook.CachedTour) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("bulk put cached"); err != nil {
		return err
	}
	for _, t := range ts {
		s.cached[t.ID] = t
		s.puts++
	}
	return nil
}

func (s *FakeStore) QueryCachedAbove(_ context.Context, cutoff int64) iter.Seq2[tourbook.CachedTour, error] {
	return func(yield func(tourbook.CachedTour, error) bool) {
		s.mu.Lock()
		if err := s.err("query cached"); err != nil {
			s.mu.Unlock()
			yield(tourbook.CachedTour{}, err)
			return
		}
		rows := make([]tourbook.CachedTour, 0, len(s.cached))
		for _, ct := range s.cached {
			if ct.CachedAt > cutoff {
				rows = append(rows, ct)
			}
		}
		s.mu.Unlock()
		slices.SortFunc(rows, func(a, b tourbook.CachedTour) int {
			return cmp.Or(cmp.Compare(a.CachedAt, b.CachedAt), cmp.Compare(a.ID, b.ID))
		})
		for _, ct := range rows {
			if !yield(ct, nil) {
				return
			}
		}
	}
}

func (s *FakeStore) DeleteCachedBelow(_ context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("delete cached below"); err != nil {
		return 0, err
	}
	var n int64
	for id, ct := range s.cached {
		if ct.CachedAt < cutoff {
			delete(s.cached, id)
			n++
		}
	}
	for q, p := range s.pages {
		if p.CachedAt < cutoff {
			delete(s.pages, q)
		}
	}
	return n, nil
}

func (s *FakeStore) DeleteCached(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("delete cached"); err != nil {
		return err
	}
	delete(s.cached, id)
	return nil
}

func (s *FakeStore) ClearCached(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("clear cached"); err != nil {
		return err
	}
	clear(s.cached)
	clear(s.pages)
	return nil
}

func (s *FakeStore) CountCached(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("count cached"); err != nil {
		return 0, err
	}
	return len(s.cached), nil
}

func (s *FakeStore) CountCachedBelow(_ context.Context, cutoff int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("count cached below"); err != nil {
		return 0, err
	}
	n := 0
	for _, ct := range s.cached {
		if ct.CachedAt < cutoff {
			n++
		}
	}
	return n, nil
}

func (s *FakeStore) GetCachedPage(_ context.Context, query string) (*tourbook.CachedPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("get page"); err != nil {
		return nil, err
	}
	p, ok := s.pages[query]
	if !ok {
		return nil, nil
	}
	p.IDs = slices.Clone(p.IDs)
	return &p, nil
}

func (s *FakeStore) PutCachedPage(_ context.Context, p *tourbook.CachedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("put page"); err != nil {
		return err
	}
	cp := *p
	cp.IDs = slices.Clone(p.IDs)
	s.pages[p.Query] = cp
	return nil
}

// --- StateStore ---

func (s *FakeStore) GetState(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("get state"); err != nil {
		return nil, err
	}
	v, ok := s.state[key]
	if !ok {
		return nil, tourbook.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *FakeStore) PutState(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("put state"); err != nil {
		return err
	}
	s.state[key] = slices.Clone(value)
	return nil
}
