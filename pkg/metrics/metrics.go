// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   *prometheus.HistogramVec
	AdapterFailuresTotal *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheEntries         prometheus.Gauge
	CacheClearsTotal     *prometheus.CounterVec
	DebounceDispatches   prometheus.Counter
	DebounceStaleDropped prometheus.Counter
	FeedRequestsTotal    prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec

	AnalyticsPublished *prometheus.CounterVec
	AnalyticsDropped   *prometheus.CounterVec
	AnalyticsBuffered  prometheus.Gauge
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the Prometheus default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by filter and cache status (hit, miss, skipped).",
			},
			[]string{"filter", "cache_status"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"filter"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"filter"},
		),
		AdapterFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_adapter_failures_total",
				Help: "Entity adapter lookups that failed and degraded to an empty result.",
			},
			[]string{"adapter"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "search_cache_entries",
				Help: "Number of live entries in the in-process result cache.",
			},
		),
		CacheClearsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_cache_clears_total",
				Help: "Result cache clears and invalidations by trigger.",
			},
			[]string{"trigger"},
		),
		DebounceDispatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_debounce_dispatches_total",
				Help: "Queries dispatched by debounced live-search sessions.",
			},
		),
		DebounceStaleDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_debounce_stale_dropped_total",
				Help: "Responses discarded because a newer generation superseded them.",
			},
		),
		FeedRequestsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feed_requests_total",
				Help: "Total recommendation feed requests.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_published_total",
				Help: "Analytics events published to the broker, by search filter key.",
			},
			[]string{"key"},
		),
		AnalyticsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Analytics events shed from a full buffer, by event type.",
			},
			[]string{"type"},
		),
		AnalyticsBuffered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_events_buffered",
				Help: "Analytics events waiting to be published.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.AdapterFailuresTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEntries,
		m.CacheClearsTotal,
		m.DebounceDispatches,
		m.DebounceStaleDropped,
		m.FeedRequestsTotal,
		m.CircuitBreakerState,
		m.AnalyticsPublished,
		m.AnalyticsDropped,
		m.AnalyticsBuffered,
	)

	return m
}

// ObserveSearch records one completed router search.
func (m *Metrics) ObserveSearch(filter, cacheStatus string, seconds float64, results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(filter, cacheStatus).Inc()
	m.SearchLatency.WithLabelValues(filter).Observe(seconds)
	m.SearchResultsCount.WithLabelValues(filter).Observe(float64(results))
}

// AdapterFailed counts a degraded adapter lookup.
func (m *Metrics) AdapterFailed(adapter string) {
	if m == nil {
		return
	}
	m.AdapterFailuresTotal.WithLabelValues(adapter).Inc()
}

// CacheLookup counts a result-cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}

// CacheSize reports the current number of live cache entries.
func (m *Metrics) CacheSize(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// CacheCleared counts a clear or invalidation by its trigger (api, event, ...).
func (m *Metrics) CacheCleared(trigger string) {
	if m == nil {
		return
	}
	m.CacheClearsTotal.WithLabelValues(trigger).Inc()
}

// Debounce records a dispatch, or a dropped stale response when stale is true.
func (m *Metrics) Debounce(stale bool) {
	if m == nil {
		return
	}
	if stale {
		m.DebounceStaleDropped.Inc()
		return
	}
	m.DebounceDispatches.Inc()
}

// FeedRequested counts a feed construction.
func (m *Metrics) FeedRequested() {
	if m == nil {
		return
	}
	m.FeedRequestsTotal.Inc()
}

// BreakerState publishes a circuit breaker state gauge.
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// AnalyticsPublishedBy counts n events published under key.
func (m *Metrics) AnalyticsPublishedBy(key string, n int) {
	if m == nil {
		return
	}
	m.AnalyticsPublished.WithLabelValues(key).Add(float64(n))
}

// AnalyticsShed counts n events of eventType dropped from the buffer.
func (m *Metrics) AnalyticsShed(eventType string, n int) {
	if m == nil {
		return
	}
	m.AnalyticsDropped.WithLabelValues(eventType).Add(float64(n))
}

// AnalyticsBacklog reports the number of buffered events.
func (m *Metrics) AnalyticsBacklog(n int) {
	if m == nil {
		return
	}
	m.AnalyticsBuffered.Set(float64(n))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
