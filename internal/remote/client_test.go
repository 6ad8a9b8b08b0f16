package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/dnscache"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/circuitbreaker"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 5*time.Second, &dnscache.Resolver{}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func f64(v float64) *float64 { return &v }

func TestGetTour(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tours/1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Request-Id"); got != "req-1" {
			t.Errorf("X-Request-Id = %q, want req-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tour":{"id":"1","title":"Ha Long Bay Cruise","price":2500000,"location":"Ha Long Bay","images":[],"tour_images":[{"id":"1-1"}]}}`))
	}))

	ctx := tourbook.ContextWithRequestID(context.Background(), "req-1")
	got, err := c.GetTour(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "1" || got.Price != 2500000 || got.Location != "Ha Long Bay" {
		t.Errorf("tour = %+v", got)
	}
}

func TestStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantIs  error
		wantMsg string
	}{
		{"not found", 404, `{"error":"Tour not found"}`, tourbook.ErrNotFound, "Tour not found"},
		{"invalid id", 400, `{"error":"Invalid tour ID"}`, tourbook.ErrValidation, "Invalid tour ID"},
		{"server error", 500, `{"error":"Internal server error"}`, tourbook.ErrNetwork, "Internal server error"},
		{"plain text body", 502, "bad gateway\n", tourbook.ErrNetwork, "bad gateway"},
		{"empty body", 503, "", tourbook.ErrNetwork, "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			_, err := c.GetTour(context.Background(), "1")
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("err = %v, want %v", err, tt.wantIs)
			}
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %T, want *StatusError", err)
			}
			if se.Message != tt.wantMsg || se.HTTPStatus() != tt.status {
				t.Errorf("StatusError = %d %q, want %d %q", se.StatusCode, se.Message, tt.status, tt.wantMsg)
			}
		})
	}
}

func TestListTours(t *testing.T) {
	t.Parallel()

	var query string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"tours":[{"id":"2","location":"Sapa"}],"total":7,"page":2,"totalPages":4}`))
	}))

	res, err := c.ListTours(context.Background(), tourbook.ListQuery{Page: 2, Limit: 2, Location: "Sapa", MinPrice: f64(100)})
	if err != nil {
		t.Fatal(err)
	}
	if query != "limit=2&location=Sapa&minPrice=100&page=2" {
		t.Errorf("query = %q", query)
	}
	if len(res.Tours) != 1 || res.Total != 7 || res.Page != 2 || res.TotalPages != 4 {
		t.Errorf("result = %+v", res)
	}
}

func TestListToursNullTours(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tours":null,"total":0,"page":1,"totalPages":0}`))
	}))
	res, err := c.ListTours(context.Background(), tourbook.ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Tours == nil {
		t.Error("Tours is nil, want empty slice")
	}
}

func TestMalformedBodyIsNetworkFault(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tour":`))
	}))
	if _, err := c.GetTour(context.Background(), "1"); !errors.Is(err, tourbook.ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetTour(context.Background(), "1"); !errors.Is(err, tourbook.ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestBreakerShortCircuits(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	reg := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorThreshold: 0.5,
		MinSamples:     2,
		WindowSeconds:  60,
		OpenTimeout:    time.Hour,
	})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), WithBreakers(reg))

	for range 5 {
		_, err := c.GetTour(context.Background(), "1")
		if !errors.Is(err, tourbook.ErrNetwork) {
			t.Fatalf("err = %v, want ErrNetwork", err)
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hits = %d, want 2 before the breaker opened", n)
	}
	_, err := c.GetTour(context.Background(), "1")
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
}

func TestNotFoundKeepsBreakerClosed(t *testing.T) {
	t.Parallel()

	reg := circuitbreaker.NewRegistry(circuitbreaker.Config{ErrorThreshold: 0.5, MinSamples: 1, WindowSeconds: 60, OpenTimeout: time.Hour})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Tour not found"}`, http.StatusNotFound)
	}), WithBreakers(reg))

	for range 3 {
		c.GetTour(context.Background(), "missing")
	}
	for _, hs := range reg.States() {
		if hs.State != circuitbreaker.StateClosed {
			t.Errorf("%s breaker = %v, want closed", hs.Host, hs.State)
		}
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"ftp://catalog", "::nope", "catalog.local"} {
		if _, err := New(u, time.Second, nil); err == nil {
			t.Errorf("New(%q) succeeded, want error", u)
		}
	}
}
