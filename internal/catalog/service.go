// Package catalog serves tours from the catalog store, applying the
// normalization and simulated latency expected by the HTTP API.
package catalog

import (
	"context"
	"time"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/storage"
)

// Service reads tours from a storage.CatalogStore.
type Service struct {
	store   storage.CatalogStore
	latency time.Duration
}

// NewService returns a Service. A positive latency delays every read,
// which makes the client's cache behaviour visible during demos.
func NewService(store storage.CatalogStore, latency time.Duration) *Service {
	return &Service{store: store, latency: latency}
}

// GetTour returns one tour or tourbook.ErrNotFound.
func (s *Service) GetTour(ctx context.Context, id string) (*tourbook.TourDetail, error) {
	if err := tourbook.ValidateID(id); err != nil {
		return nil, err
	}
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	return s.store.GetTour(ctx, id)
}

// ListTours returns one page of matching tours. Page and limit are
// normalized; a page past the end yields an empty list with the real total.
func (s *Service) ListTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error) {
	q = Normalize(q)
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	res, err := s.store.ListTours(ctx, q)
	if err != nil {
		return nil, err
	}
	if res.Tours == nil {
		res.Tours = []tourbook.Tour{}
	}
	res.Page = q.Page
	res.TotalPages = tourbook.TotalPages(res.Total, q.Limit)
	return res, nil
}

// Normalize applies the default page and clamps limit to [1, MaxLimit].
func Normalize(q tourbook.ListQuery) tourbook.ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = tourbook.DefaultLimit
	case q.Limit > tourbook.MaxLimit:
		q.Limit = tourbook.MaxLimit
	}
	return q
}

func (s *Service) sleep(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
