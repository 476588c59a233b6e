package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Path      string `json:"path" yaml:"path"`
}

// Collector manages all metrics for the admission service
type Collector struct {
	namespace string
	registry  *prometheus.Registry

	// Admission metrics
	RequestsAllowed *prometheus.CounterVec
	RequestsBlocked *prometheus.CounterVec
	CheckDuration   *prometheus.HistogramVec

	// Degradation metrics
	CounterStoreDegraded prometheus.Counter
	LimitConfigFallbacks prometheus.Counter

	// GeoIP metrics
	GeoLookups        *prometheus.CounterVec
	GeoProviderErrors *prometheus.CounterVec

	// Audit metrics
	AuditWrites       *prometheus.CounterVec
	AuditQueueDropped prometheus.Counter
}

// NewCollector creates a new metrics collector
func NewCollector(namespace string) *Collector {
	c := &Collector{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	c.initializeMetrics()
	c.registerMetrics()

	return c
}

// initializeMetrics initializes all metrics
func (c *Collector) initializeMetrics() {
	c.RequestsAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "requests_allowed_total",
			Help:      "Total number of requests admitted by the rate limiter",
		},
		[]string{"identity_class"},
	)

	c.RequestsBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "requests_blocked_total",
			Help:      "Total number of requests rejected with 429",
		},
		[]string{"identity_class"},
	)

	c.CheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      "check_duration_seconds",
			Help:      "Rate limit check duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"identity_class"},
	)

	c.CounterStoreDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "counter_store_degraded_total",
			Help:      "Checks that fell back to the in-memory counter or failed open",
		},
	)

	c.LimitConfigFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "limit_config_fallbacks_total",
			Help:      "Limit lookups that resolved to hardcoded defaults",
		},
	)

	c.GeoLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "geo_lookups_total",
			Help:      "GeoIP lookups by resolution tier",
		},
		[]string{"tier"},
	)

	c.GeoProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "geo_provider_errors_total",
			Help:      "Remote GeoIP provider failures",
		},
		[]string{"provider"},
	)

	c.AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "audit_writes_total",
			Help:      "Audit sink writes by result",
		},
		[]string{"result"},
	)

	c.AuditQueueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "audit_queue_dropped_total",
			Help:      "Audit records dropped because the writer queue was full",
		},
	)
}

// registerMetrics registers all metrics with the registry
func (c *Collector) registerMetrics() {
	c.registry.MustRegister(
		c.RequestsAllowed,
		c.RequestsBlocked,
		c.CheckDuration,
		c.CounterStoreDegraded,
		c.LimitConfigFallbacks,
		c.GeoLookups,
		c.GeoProviderErrors,
		c.AuditWrites,
		c.AuditQueueDropped,
	)
}

// Handler returns the HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
