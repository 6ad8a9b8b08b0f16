package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"iter"
	"sync/atomic"

	tourbook "github.com/eugener/tourbook/internal"
)

const upsertCached = `INSERT INTO cached_tours (id, location, category, cached_at, data)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		location=excluded.location, category=excluded.category,
		cached_at=excluded.cached_at, data=excluded.data`

// GetCached returns the cached row for id, or nil on a miss.
func (s *Store) GetCached(ctx context.Context, id string) (*tourbook.CachedTour, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT data, cached_at FROM cached_tours WHERE id=?`, id,
	)
	ct, err := scanCached(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get cached", err)
	}
	return ct, nil
}

// PutCached upserts a cached row.
func (s *Store) PutCached(ctx context.Context, t *tourbook.CachedTour) error {
	data, err := json.Marshal(&t.Tour)
	if err != nil {
		return storageErr("marshal cached", err)
	}
	_, err = s.write.ExecContext(ctx, upsertCached,
		t.ID, t.Location, t.Category, t.CachedAt, string(data),
	)
	if err != nil {
		return storageErr("put cached", err)
	}
	return nil
}

// BulkPutCached upserts rows in a single transaction with a prepared statement.
func (s *Store) BulkPutCached(ctx context.Context, ts []tourbook.CachedTour) error {
	if len(ts) == 0 {
		return nil
	}
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin bulk put", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertCached)
	if err != nil {
		return storageErr("prepare bulk put", err)
	}
	defer stmt.Close()

	for i := range ts {
		t := &ts[i]
		data, err := json.Marshal(&t.Tour)
		if err != nil {
			return storageErr("marshal cached", err)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Location, t.Category, t.CachedAt, string(data)); err != nil {
			return storageErr("bulk put", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit bulk put", err)
	}
	return nil
}

// QueryCachedAbove lazily yields rows with cached_at > cutoff, oldest first.
// The query runs when iteration starts; the sequence is single-use.
func (s *Store) QueryCachedAbove(ctx context.Context, cutoff int64) iter.Seq2[tourbook.CachedTour, error] {
	var consumed atomic.Bool
	return func(yield func(tourbook.CachedTour, error) bool) {
		if consumed.Swap(true) {
			return
		}
		rows, err := s.read.QueryContext(ctx,
			`SELECT data, cached_at FROM cached_tours WHERE cached_at > ? ORDER BY cached_at, id`, cutoff,
		)
		if err != nil {
			yield(tourbook.CachedTour{}, storageErr("query cached", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			ct, err := scanCached(rows)
			if err != nil {
				yield(tourbook.CachedTour{}, storageErr("scan cached", err))
				return
			}
			if !yield(*ct, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(tourbook.CachedTour{}, storageErr("iterate cached", err))
		}
	}
}

// DeleteCachedBelow removes rows with cached_at < cutoff and returns how many
// went. Page records older than cutoff are removed too and not counted.
func (s *Store) DeleteCachedBelow(ctx context.Context, cutoff int64) (int64, error) {
	result, err := s.write.ExecContext(ctx, `DELETE FROM cached_tours WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, storageErr("delete cached below", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("delete cached below", err)
	}
	if _, err := s.write.ExecContext(ctx, `DELETE FROM cached_pages WHERE cached_at < ?`, cutoff); err != nil {
		return n, storageErr("delete pages below", err)
	}
	return n, nil
}

// DeleteCached removes a single row. Deleting a missing id is not an error.
func (s *Store) DeleteCached(ctx context.Context, id string) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM cached_tours WHERE id=?`, id); err != nil {
		return storageErr("delete cached", err)
	}
	return nil
}

// ClearCached removes every cached row and page record.
func (s *Store) ClearCached(ctx context.Context) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM cached_tours`); err != nil {
		return storageErr("clear cached", err)
	}
	if _, err := s.write.ExecContext(ctx, `DELETE FROM cached_pages`); err != nil {
		return storageErr("clear pages", err)
	}
	return nil
}

// GetCachedPage returns the page record for query, or nil on a miss.
func (s *Store) GetCachedPage(ctx context.Context, query string) (*tourbook.CachedPage, error) {
	var ids string
	p := tourbook.CachedPage{Query: query}
	err := s.read.QueryRowContext(ctx,
		`SELECT ids, total, total_pages, cached_at FROM cached_pages WHERE query=?`, query,
	).Scan(&ids, &p.Total, &p.TotalPages, &p.CachedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("get page", err)
	}
	if err := json.Unmarshal([]byte(ids), &p.IDs); err != nil {
		return nil, storageErr("decode page", err)
	}
	return &p, nil
}

// PutCachedPage upserts a page record.
func (s *Store) PutCachedPage(ctx context.Context, p *tourbook.CachedPage) error {
	ids, err := json.Marshal(p.IDs)
	if err != nil {
		return storageErr("marshal page", err)
	}
	_, err = s.write.ExecContext(ctx,
		`INSERT INTO cached_pages (query, ids, total, total_pages, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			ids=excluded.ids, total=excluded.total,
			total_pages=excluded.total_pages, cached_at=excluded.cached_at`,
		p.Query, string(ids), p.Total, p.TotalPages, p.CachedAt,
	)
	if err != nil {
		return storageErr("put page", err)
	}
	return nil
}

// CountCached returns the number of cached rows.
func (s *Store) CountCached(ctx context.Context) (int, error) {
	var n int
	if err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_tours`).Scan(&n); err != nil {
		return 0, storageErr("count cached", err)
	}
	return n, nil
}

// CountCachedBelow returns the number of rows with cached_at < cutoff.
func (s *Store) CountCachedBelow(ctx context.Context, cutoff int64) (int, error) {
	var n int
	err := s.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cached_tours WHERE cached_at < ?`, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count cached below", err)
	}
	return n, nil
}

func scanCached(s scanner) (*tourbook.CachedTour, error) {
	var data string
	var ct tourbook.CachedTour
	if err := s.Scan(&data, &ct.CachedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &ct.Tour); err != nil {
		return nil, err
	}
	return &ct, nil
}
