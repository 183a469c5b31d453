// Package metrics holds the Prometheus collectors for the federator.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stac_federator"

// Provider call outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ProviderRequests    *prometheus.CounterVec
	ProviderDuration    *prometheus.HistogramVec
	ProviderConcurrency *prometheus.GaugeVec
	CacheLookups        *prometheus.CounterVec
	CacheErrors         *prometheus.CounterVec
	CacheSwept          prometheus.Counter
	AssetResolutions    *prometheus.CounterVec
	JobsSubmitted       *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Upstream provider search calls by outcome.",
		}, []string{"provider", "outcome"}), // outcome: ok, error, timeout
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Upstream provider search latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		}, []string{"provider"}),
		ProviderConcurrency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "concurrency_limit",
			Help:      "Current effective concurrency ceiling per provider.",
		}, []string{"provider"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Search cache lookups by result.",
		}, []string{"result"}), // result: HIT-L1, HIT-L2, MISS
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Durable cache tier failures by operation.",
		}, []string{"operation"}),
		CacheSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "swept_rows_total",
			Help:      "Expired cache rows deleted by the sweeper.",
		}),
		AssetResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "resolutions_total",
			Help:      "Per-band asset resolutions by status.",
		}, []string{"status"}),
		JobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Processing jobs submitted by operation.",
		}, []string{"operation"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveProvider records one provider call. timedOut distinguishes
// timeouts from other failures.
func (m *Metrics) ObserveProvider(provider string, elapsed time.Duration, err error, timedOut bool) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case timedOut:
		outcome = OutcomeTimeout
	case err != nil:
		outcome = OutcomeError
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// SetProviderConcurrency publishes a provider's effective concurrency.
func (m *Metrics) SetProviderConcurrency(provider string, limit int) {
	if m == nil {
		return
	}
	m.ProviderConcurrency.WithLabelValues(provider).Set(float64(limit))
}

// CacheLookup records a cache lookup result.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// CacheError records a durable tier failure.
func (m *Metrics) CacheError(operation string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(operation).Inc()
}

// Swept records rows removed by a cache sweep.
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheSwept.Add(float64(n))
}

// AssetResolved records one band resolution.
func (m *Metrics) AssetResolved(status string) {
	if m == nil {
		return
	}
	m.AssetResolutions.WithLabelValues(status).Inc()
}

// JobSubmitted records a processing job submission.
func (m *Metrics) JobSubmitted(operation string) {
	if m == nil {
		return
	}
	m.JobsSubmitted.WithLabelValues(operation).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
