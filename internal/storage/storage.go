// Package storage defines persistence interfaces for tourbook.
package storage

import (
	"context"
	"iter"

	tourbook "github.com/eugener/tourbook/internal"
)

// RecordStore is the local table of cached tours keyed by id, with a secondary
// index on cached_at. Faults are returned wrapped in tourbook.ErrStorage.
type RecordStore interface {
	// GetCached returns the row for id, or nil without error on a miss.
	GetCached(ctx context.Context, id string) (*tourbook.CachedTour, error)
	// PutCached upserts a row, replacing any existing row entirely.
	PutCached(ctx context.Context, t *tourbook.CachedTour) error
	// BulkPutCached upserts many rows. Each row upsert is atomic.
	BulkPutCached(ctx context.Context, ts []tourbook.CachedTour) error
	// QueryCachedAbove lazily yields rows with cached_at > cutoff. The sequence
	// can be ranged over once; later ranges yield nothing.
	QueryCachedAbove(ctx context.Context, cutoff int64) iter.Seq2[tourbook.CachedTour, error]
	// DeleteCachedBelow removes rows with cached_at < cutoff. Page records
	// older than cutoff go with them but are not counted.
	DeleteCachedBelow(ctx context.Context, cutoff int64) (int64, error)
	DeleteCached(ctx context.Context, id string) error
	// ClearCached removes every cached row and page record.
	ClearCached(ctx context.Context) error
	CountCached(ctx context.Context) (int, error)
	// CountCachedBelow counts rows with cached_at < cutoff.
	CountCachedBelow(ctx context.Context, cutoff int64) (int, error)

	// GetCachedPage returns the page recorded for query, or nil without error.
	GetCachedPage(ctx context.Context, query string) (*tourbook.CachedPage, error)
	// PutCachedPage upserts a page record by query.
	PutCachedPage(ctx context.Context, p *tourbook.CachedPage) error
}

// StateStore holds small durable values (e.g. the serialized filter state).
type StateStore interface {
	// GetState returns the value for key, or tourbook.ErrNotFound.
	GetState(ctx context.Context, key string) ([]byte, error)
	PutState(ctx context.Context, key string, value []byte) error
}

// CatalogStore is the server-side source of truth for tours.
type CatalogStore interface {
	CreateTour(ctx context.Context, t *tourbook.TourDetail) error
	GetTour(ctx context.Context, id string) (*tourbook.TourDetail, error)
	ListTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error)
}

// Store combines all storage interfaces.
type Store interface {
	RecordStore
	StateStore
	CatalogStore
	Ping(ctx context.Context) error
	Close() error
}
