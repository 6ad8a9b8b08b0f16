// Package tourbook defines domain types and helpers for the tour catalog and its
// client-side cache. This package has no project imports -- it is the dependency root.
package tourbook

import (
	"context"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// --- Tours ---

// Tour status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDraft    = "draft"
)

// Tour is a bookable tour as served by the catalog API.
type Tour struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Price          float64  `json:"price"`
	Duration       int      `json:"duration"` // days
	Location       string   `json:"location"`
	Category       string   `json:"category"`
	Images         []string `json:"images"`
	Rating         float64  `json:"rating"`
	AvailableSlots int      `json:"available_slots"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// TourDetail is a Tour with the extra data shown on the detail page.
type TourDetail struct {
	Tour
	TourImages []TourImage  `json:"tour_images,omitempty"`
	Reviews    []TourReview `json:"reviews,omitempty"`
}

// TourImage is an ordered gallery image.
type TourImage struct {
	ID       string `json:"id"`
	TourID   string `json:"tour_id"`
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text,omitempty"`
	Order    int    `json:"order"`
}

// TourReview is a customer review.
type TourReview struct {
	ID        string  `json:"id"`
	TourID    string  `json:"tour_id"`
	UserName  string  `json:"user_name"`
	Rating    float64 `json:"rating"`
	Comment   string  `json:"comment"`
	CreatedAt string  `json:"created_at"`
}

// CachedTour is a Tour plus the time it was written to the local cache.
// CachedAt is storage metadata and is stripped before a tour leaves the cache.
type CachedTour struct {
	Tour
	CachedAt int64 // epoch milliseconds
}

// CachedPage remembers one catalog page: the ids it listed, in catalog order,
// and the totals reported with it. Query is the canonical ListQuery.Encode().
type CachedPage struct {
	Query      string
	IDs        []string
	Total      int
	TotalPages int
	CachedAt   int64 // epoch milliseconds
}

// --- Filters and pagination ---

// Filters are the user-selected predicates over a tour list.
// Empty strings and a nil PriceRange mean "no constraint".
type Filters struct {
	Location   string      `json:"location"`
	Category   string      `json:"category"`
	PriceRange *[2]float64 `json:"priceRange,omitempty"`
}

// MatchesLocationCategory reports whether t passes the location and category
// predicates. Location is a case-insensitive substring match, category is exact.
func (f Filters) MatchesLocationCategory(t *Tour) bool {
	if f.Location != "" && !strings.Contains(strings.ToLower(t.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return true
}

// Matches reports whether t passes every active filter. The price range is closed.
func (f Filters) Matches(t *Tour) bool {
	if !f.MatchesLocationCategory(t) {
		return false
	}
	if f.PriceRange != nil && (t.Price < f.PriceRange[0] || t.Price > f.PriceRange[1]) {
		return false
	}
	return true
}

// ListQuery is a parameterized collection read.
type ListQuery struct {
	Page     int
	Limit    int
	Location string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// Filters returns the filter view of the query.
func (q ListQuery) Filters() Filters {
	f := Filters{Location: q.Location, Category: q.Category}
	if q.MinPrice != nil || q.MaxPrice != nil {
		lo, hi := math.Inf(-1), math.Inf(1)
		if q.MinPrice != nil {
			lo = *q.MinPrice
		}
		if q.MaxPrice != nil {
			hi = *q.MaxPrice
		}
		f.PriceRange = &[2]float64{lo, hi}
	}
	return f
}

// Encode renders q as URL query parameters, omitting zero values. Keys are
// sorted, so equal queries encode identically.
func (q ListQuery) Encode() string {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Location != "" {
		v.Set("location", q.Location)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	return v.Encode()
}

// ListResult is one page of a filtered tour list.
type ListResult struct {
	Tours      []Tour `json:"tours"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

// Default and maximum page sizes for collection reads.
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// TotalPages returns ceil(total/limit), or 0 when limit is not positive.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Paginate returns the half-open slice [(page-1)*limit, page*limit) of items and the
// total page count. Pages outside the range yield an empty slice, never an error.
func Paginate[T any](items []T, page, limit int) ([]T, int) {
	totalPages := TotalPages(len(items), limit)
	if page < 1 || limit <= 0 {
		return []T{}, totalPages
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, totalPages
	}
	end := min(start+limit, len(items))
	return items[start:end], totalPages
}

// --- Validation ---

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID rejects malformed tour ids before any I/O happens.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return &ValidationError{
			Message: "Invalid tour ID",
			Details: []FieldError{{Field: "id", Message: "must be 1-64 characters of [A-Za-z0-9_-]"}},
		}
	}
	return nil
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
