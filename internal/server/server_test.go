package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/cache"
	"github.com/eugener/tourbook/internal/catalog"
	"github.com/eugener/tourbook/internal/storage/sqlite"
)

// fakeCatalog serves the demo tours from memory and counts reads.
type fakeCatalog struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCatalog) GetTour(_ context.Context, id string) (*tourbook.TourDetail, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range catalog.DemoTours() {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, tourbook.ErrNotFound
}

func (f *fakeCatalog) ListTours(_ context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	filters := q.Filters()
	var matched []tourbook.Tour
	for _, t := range catalog.DemoTours() {
		if filters.Matches(&t.Tour) {
			matched = append(matched, t.Tour)
		}
	}
	page, totalPages := tourbook.Paginate(matched, q.Page, q.Limit)
	return &tourbook.ListResult{Tours: page, Total: len(matched), Page: q.Page, TotalPages: totalPages}, nil
}

func newTestHandler(c Catalog) http.Handler {
	return New(Deps{Catalog: c})
}

func get(t testing.TB, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	rec := get(t, newTestHandler(&fakeCatalog{}), "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		check ReadyChecker
		want  int
	}{
		{"no check", nil, http.StatusOK},
		{"store up", func(context.Context) error { return nil }, http.StatusOK},
		{"store down", func(context.Context) error { return errors.New("db closed") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := New(Deps{Catalog: &fakeCatalog{}, ReadyCheck: tt.check})
			if rec := get(t, h, "/readyz"); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	h := newTestHandler(&fakeCatalog{})

	rec := get(t, h, "/healthz")
	if id := rec.Header().Get("X-Request-Id"); len(id) != 36 {
		t.Errorf("generated request id = %q, want a uuid", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "caller-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if id := rec.Header().Get("X-Request-Id"); id != "caller-123" {
		t.Errorf("request id = %q, want caller-123", id)
	}
}

func TestGetTour(t *testing.T) {
	t.Parallel()
	rec := get(t, newTestHandler(&fakeCatalog{}), "/api/tours/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	var resp struct {
		Tour tourbook.TourDetail `json:"tour"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Tour.ID != "1" || resp.Tour.Location != "Ha Long Bay" {
		t.Errorf("tour = %+v", resp.Tour.Tour)
	}
	if len(resp.Tour.TourImages) != 1 {
		t.Errorf("tour_images = %d, want 1", len(resp.Tour.TourImages))
	}
}

func TestGetTour_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"unknown id", "/api/tours/999", nil, http.StatusNotFound, "Tour not found"},
		{"malformed id", "/api/tours/bad%20id", nil, http.StatusBadRequest, "Invalid tour ID"},
		{"store failure", "/api/tours/1", tourbook.ErrStorage, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fc := &fakeCatalog{err: tt.err}
			rec := get(t, newTestHandler(fc), tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if len(body.Details) != 0 {
				t.Errorf("details = %v, want none", body.Details)
			}
		})
	}
}

func TestGetTour_MalformedIDSkipsCatalog(t *testing.T) {
	t.Parallel()
	fc := &fakeCatalog{}
	get(t, newTestHandler(fc), "/api/tours/"+strings.Repeat("x", 65))
	if n := fc.calls.Load(); n != 0 {
		t.Errorf("catalog calls = %d, want 0", n)
	}
}

func TestListTours(t *testing.T) {
	t.Parallel()
	h := newTestHandler(&fakeCatalog{})

	tests := []struct {
		name       string
		query      string
		wantIDs    []string
		wantTotal  int
		wantPage   int
		wantTPages int
	}{
		{"defaults", "", []string{"1", "2", "3", "4", "5", "6"}, 6, 1, 1},
		{"location substring", "?location=ha+long", []string{"1"}, 1, 1, 1},
		{"category", "?category=Food", []string{"3"}, 1, 1, 1},
		{"price range", "?minPrice=800000&maxPrice=1800000", []string{"2", "3", "6"}, 3, 1, 1},
		{"second page", "?page=2&limit=4", []string{"5", "6"}, 6, 2, 2},
		{"limit clamped up", "?limit=0", []string{"1"}, 6, 1, 6},
		{"limit clamped down", "?limit=500", []string{"1", "2", "3", "4", "5", "6"}, 6, 1, 1},
		{"page past the end", "?page=9", []string{}, 6, 9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := get(t, h, "/api/tours"+tt.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
			}
			var res tourbook.ListResult
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatal(err)
			}
			if res.Total != tt.wantTotal || res.Page != tt.wantPage || res.TotalPages != tt.wantTPages {
				t.Errorf("total/page/totalPages = %d/%d/%d, want %d/%d/%d",
					res.Total, res.Page, res.TotalPages, tt.wantTotal, tt.wantPage, tt.wantTPages)
			}
			if res.Tours == nil {
				t.Fatal("tours must encode as an array, not null")
			}
			if len(res.Tours) != len(tt.wantIDs) {
				t.Fatalf("got %d tours, want %d", len(res.Tours), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if res.Tours[i].ID != id {
					t.Errorf("tours[%d].id = %q, want %q", i, res.Tours[i].ID, id)
				}
			}
		})
	}
}

func TestListTours_InvalidQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		query      string
		wantFields []string
	}{
		{"page zero", "?page=0", []string{"page"}},
		{"page not a number", "?page=two", []string{"page"}},
		{"limit not a number", "?limit=ten", []string{"limit"}},
		{"bad prices", "?minPrice=cheap&maxPrice=NaN", []string{"minPrice", "maxPrice"}},
		{"inverted range", "?minPrice=10&maxPrice=5", []string{"minPrice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fc := &fakeCatalog{}
			rec := get(t, newTestHandler(fc), "/api/tours"+tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			body := decodeError(t, rec)
			if body.Error != "Invalid query parameters" {
				t.Errorf("error = %q", body.Error)
			}
			if len(body.Details) != len(tt.wantFields) {
				t.Fatalf("details = %v, want fields %v", body.Details, tt.wantFields)
			}
			for i, f := range tt.wantFields {
				if body.Details[i].Field != f {
					t.Errorf("details[%d].field = %q, want %q", i, body.Details[i].Field, f)
				}
			}
			if fc.calls.Load() != 0 {
				t.Error("invalid query reached the catalog")
			}
		})
	}
}

func TestListTours_InternalError(t *testing.T) {
	t.Parallel()
	rec := get(t, newTestHandler(&fakeCatalog{err: errors.New("disk on fire")}), "/api/tours")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "Internal server error" {
		t.Errorf("error = %q, leaked detail?", body.Error)
	}
}

func TestResponseCache(t *testing.T) {
	t.Parallel()
	mem, err := cache.NewMemory(100, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	fc := &fakeCatalog{}
	h := New(Deps{Catalog: fc, Cache: mem})

	// Equivalent queries share one canonical key.
	first := get(t, h, "/api/tours?location=Sapa&page=1")
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}
	// otter processes Set asynchronously; wait briefly.
	time.Sleep(50 * time.Millisecond)

	second := get(t, h, "/api/tours?page=1&limit=20&location=Sapa")
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("cached body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if n := fc.calls.Load(); n != 1 {
		t.Errorf("catalog calls = %d, want 1", n)
	}
}

func TestResponseCache_SkipsErrors(t *testing.T) {
	t.Parallel()
	mem, err := cache.NewMemory(100, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	fc := &fakeCatalog{}
	h := New(Deps{Catalog: fc, Cache: mem})

	for range 2 {
		if rec := get(t, h, "/api/tours/999"); rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if n := fc.calls.Load(); n != 2 {
		t.Errorf("catalog calls = %d, want 2 (404s are not cached)", n)
	}
}

func TestWithSQLiteCatalog(t *testing.T) {
	t.Parallel()
	store, err := sqlite.New(t.TempDir() + "/catalog.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	for _, tour := range catalog.DemoTours() {
		if err := store.CreateTour(context.Background(), &tour); err != nil {
			t.Fatal(err)
		}
	}
	h := New(Deps{Catalog: catalog.NewService(store, 0), ReadyCheck: store.Ping})

	if rec := get(t, h, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
	rec := get(t, h, "/api/tours?category=Beach")
	var res tourbook.ListResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Tours[0].Location != "Phu Quoc" {
		t.Errorf("beach tours = %+v", res)
	}
	if rec := get(t, h, "/api/tours/404"); rec.Code != http.StatusNotFound {
		t.Errorf("missing tour = %d, want 404", rec.Code)
	}
}
