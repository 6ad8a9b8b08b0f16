// Package remote is the HTTP client for the catalog API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/dnscache"
	"github.com/tidwall/gjson"

	tourbook "github.com/eugener/tourbook/internal"
	"github.com/eugener/tourbook/internal/circuitbreaker"
)

// StatusError is a non-2xx response from the catalog API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Unwrap maps the status onto the domain sentinels.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return tourbook.ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return tourbook.ErrValidation
	default:
		return tourbook.ErrNetwork
	}
}

// Client talks to a tourbook catalog server.
type Client struct {
	baseURL  string
	host     string
	http     *http.Client
	breakers *circuitbreaker.Registry
}

// Option configures a Client.
type Option func(*Client)

// WithBreakers guards every call with the registry's breaker for the base URL's host.
func WithBreakers(r *circuitbreaker.Registry) Option {
	return func(c *Client) { c.breakers = r }
}

// WithHTTPClient replaces the default tuned client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for baseURL. If resolver is non-nil, dials go through
// the cached resolver.
func New(baseURL string, timeout time.Duration, resolver *dnscache.Resolver, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL: u.String(),
		host:    u.Host,
		http:    &http.Client{Transport: NewTransport(resolver, u.Scheme == "https"), Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NewTransport returns a tuned *http.Transport with connection pooling and
// optional DNS caching.
func NewTransport(resolver *dnscache.Resolver, forceHTTP2 bool) *http.Transport {
	t := &http.Transport{
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     32,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   forceHTTP2,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// GetTour fetches one tour. A 404 yields an error wrapping tourbook.ErrNotFound.
func (c *Client) GetTour(ctx context.Context, id string) (*tourbook.Tour, error) {
	var body struct {
		Tour *tourbook.TourDetail `json:"tour"`
	}
	if err := c.get(ctx, "/api/tours/"+url.PathEscape(id), &body); err != nil {
		return nil, err
	}
	if body.Tour == nil {
		return nil, fmt.Errorf("%w: catalog: response has no tour", tourbook.ErrNetwork)
	}
	return &body.Tour.Tour, nil
}

// ListTours fetches one page of tours.
func (c *Client) ListTours(ctx context.Context, q tourbook.ListQuery) (*tourbook.ListResult, error) {
	var res tourbook.ListResult
	if err := c.get(ctx, "/api/tours?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	if res.Tours == nil {
		res.Tours = []tourbook.Tour{}
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	call := func() error { return c.do(ctx, path, out) }
	var err error
	if c.breakers != nil {
		err = c.breakers.GetOrCreate(c.host).Call(call)
	} else {
		err = call()
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %s: %w", tourbook.ErrNetwork, c.host, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: catalog: create request: %w", tourbook.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if id := tourbook.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: catalog: %w", tourbook.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: catalog: decode response: %w", tourbook.ErrNetwork, err)
	}
	return nil
}

// parseStatusError reads up to 4KB of the body and extracts the "error" field.
func parseStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := gjson.GetBytes(body, "error").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
