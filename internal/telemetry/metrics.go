// Package telemetry provides observability primitives for tourbook.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tourbook"

// Metrics holds all Prometheus collectors for the catalog server and the client.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ActiveRequests      prometheus.Gauge
	RemoteDuration      *prometheus.HistogramVec
	RemoteErrors        *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	Revalidations       *prometheus.CounterVec
	ResponseCacheHits   prometheus.Counter
	ResponseCacheMisses prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       namespace,
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       namespace,
			Name:                            "remote_duration_seconds",
			Help:                            "Catalog API call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"op"}),

		RemoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_errors_total",
			Help:      "Total failed catalog API calls.",
		}, []string{"op"}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Local tour cache lookups by outcome.",
		}, []string{"outcome"}),

		Revalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revalidations_total",
			Help:      "Background revalidations by kind and result.",
		}, []string{"kind", "result"}),

		ResponseCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_hits_total",
			Help:      "Total server response cache hits.",
		}),

		ResponseCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_misses_total",
			Help:      "Total server response cache misses.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.RemoteDuration,
		m.RemoteErrors,
		m.CacheLookups,
		m.Revalidations,
		m.ResponseCacheHits,
		m.ResponseCacheMisses,
	)

	return m
}

// CacheLookup counts one local cache lookup. Safe on a nil receiver.
func (m *Metrics) CacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// Revalidation counts one finished background revalidation.
func (m *Metrics) Revalidation(kind, result string) {
	if m == nil {
		return
	}
	m.Revalidations.WithLabelValues(kind, result).Inc()
}

// RemoteCall observes one catalog API call.
func (m *Metrics) RemoteCall(op string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.RemoteDuration.WithLabelValues(op).Observe(seconds)
	if err != nil {
		m.RemoteErrors.WithLabelValues(op).Inc()
	}
}

// ResponseCacheLookup counts one server response cache lookup.
func (m *Metrics) ResponseCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ResponseCacheHits.Inc()
		return
	}
	m.ResponseCacheMisses.Inc()
}
