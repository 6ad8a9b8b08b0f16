package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	tourbook "github.com/eugener/tourbook/internal"
)

type tourResponse struct {
	Tour *tourbook.TourDetail `json:"tour"`
}

func (s *server) handleGetTour(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if tourbook.ValidateID(id) != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid tour ID"})
		return
	}
	s.serveCached(w, r, "/api/tours/"+id, func(ctx context.Context) (any, error) {
		t, err := s.deps.Catalog.GetTour(ctx, id)
		if err != nil {
			return nil, err
		}
		return tourResponse{Tour: t}, nil
	})
}

func (s *server) handleListTours(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveCached(w, r, "/api/tours?"+q.Encode(), func(ctx context.Context) (any, error) {
		return s.deps.Catalog.ListTours(ctx, q)
	})
}

var (
	cacheHit  = []string{"HIT"}
	cacheMiss = []string{"MISS"}
)

// serveCached writes the cached body for key, or runs load, encodes its
// result and caches it. Only successful responses are cached.
func (s *server) serveCached(w http.ResponseWriter, r *http.Request, key string, load func(context.Context) (any, error)) {
	c := s.deps.Cache
	if c != nil {
		body, ok := c.Get(r.Context(), key)
		s.deps.Metrics.ResponseCacheLookup(ok)
		if ok {
			w.Header()["X-Cache"] = cacheHit
			writeBody(w, http.StatusOK, body)
			return
		}
	}

	v, err := load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: encode response: %w", tourbook.ErrInternal, err))
		return
	}
	if c != nil {
		c.Set(r.Context(), key, body)
		w.Header()["X-Cache"] = cacheMiss
	}
	writeBody(w, http.StatusOK, body)
}

// parseListQuery reads the list parameters. page defaults to 1 and must be
// positive; limit defaults to tourbook.DefaultLimit and is clamped to
// [1, tourbook.MaxLimit]. Every rejected field is reported.
func parseListQuery(v url.Values) (tourbook.ListQuery, error) {
	q := tourbook.ListQuery{
		Page:     1,
		Limit:    tourbook.DefaultLimit,
		Location: v.Get("location"),
		Category: v.Get("category"),
	}
	var details []tourbook.FieldError

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			details = append(details, tourbook.FieldError{Field: "page", Message: "must be an integer"})
		case n < 1:
			details = append(details, tourbook.FieldError{Field: "page", Message: "must be at least 1"})
		default:
			q.Page = n
		}
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			details = append(details, tourbook.FieldError{Field: "limit", Message: "must be an integer"})
		} else {
			q.Limit = min(max(n, 1), tourbook.MaxLimit)
		}
	}

	var ok bool
	if q.MinPrice, ok = parsePrice(v.Get("minPrice")); !ok {
		details = append(details, tourbook.FieldError{Field: "minPrice", Message: "must be a number"})
	}
	if q.MaxPrice, ok = parsePrice(v.Get("maxPrice")); !ok {
		details = append(details, tourbook.FieldError{Field: "maxPrice", Message: "must be a number"})
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		details = append(details, tourbook.FieldError{Field: "minPrice", Message: "must not exceed maxPrice"})
	}

	if len(details) > 0 {
		return q, &tourbook.ValidationError{Message: "Invalid query parameters", Details: details}
	}
	return q, nil
}

// parsePrice returns nil for an absent value and false for a malformed one.
func parsePrice(s string) (*float64, bool) {
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}
