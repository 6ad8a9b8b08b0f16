package sqlite

import (
	"context"
	"encoding/json"
	"strings"

	tourbook "github.com/eugener/tourbook/internal"
)

// CreateTour inserts a catalog tour.
func (s *Store) CreateTour(ctx context.Context, t *tourbook.TourDetail) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	status := t.Status
	if status == "" {
		status = tourbook.StatusActive
	}
	_, err = s.write.ExecContext(ctx,
		`INSERT INTO catalog_tours (id, location, category, price, status, created_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Location, t.Category, t.Price, status, t.CreatedAt, string(data),
	)
	return err
}

// GetTour retrieves a catalog tour by ID.
func (s *Store) GetTour(ctx context.Context, id string) (*tourbook.TourDetail, error) {
	row := s.read.QueryRowContext(ctx, `SELECT data FROM catalog_tours WHERE id=?`, id)
	var data string
	if err := row.Scan(&data); err != nil {
		return nil, notFoundErr(err)
	}
	var t tourbook.TourDetail
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTours returns one page of catalog tours matching q, newest first.
// Page and Limit are taken as given; callers normalize them.
func (s *Store) ListTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error) {
	where, args := catalogWhere(q)

	var total int
	if err := s.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_tours`+where, args...,
	).Scan(&total); err != nil {
		return nil, err
	}

	out := &tourbook.ListResult{
		Tours:      []tourbook.Tour{},
		Total:      total,
		Page:       q.Page,
		TotalPages: tourbook.TotalPages(total, q.Limit),
	}
	if q.Page < 1 || q.Limit < 1 {
		return out, nil
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	rows, err := s.read.QueryContext(ctx,
		`SELECT data FROM catalog_tours`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t tourbook.Tour
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, err
		}
		out.Tours = append(out.Tours, t)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func catalogWhere(q tourbook.ListQuery) (string, []any) {
	var clauses []string
	var args []any
	if q.Location != "" {
		// LIKE is case-insensitive for ASCII in SQLite.
		clauses = append(clauses, `location LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(q.Location)+"%")
	}
	if q.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, q.Category)
	}
	if q.MinPrice != nil {
		clauses = append(clauses, "price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		clauses = append(clauses, "price <= ?")
		args = append(args, *q.MaxPrice)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
