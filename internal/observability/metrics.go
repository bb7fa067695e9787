package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Query cache hits/misses per resource kind. Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Stale values served while a background refresh runs.
	CacheStaleServesTotal *prometheus.CounterVec

	// Callers that joined an already in-flight fetch instead of issuing their own.
	CacheDedupJoinsTotal *prometheus.CounterVec

	// Background refreshes triggered by stale entries.
	CacheRefreshTotal *prometheus.CounterVec

	// Entries dropped past their expiry with no observers.
	CacheEvictionsTotal prometheus.Counter

	// Upstream fetch rate by endpoint and outcome. Watch for: error vs success ratio.
	FetchCallsTotal *prometheus.CounterVec

	// Upstream fetch latency. Watch for: p95 > 2s (upstream degradation).
	FetchDuration *prometheus.HistogramVec

	// Retry attempts scheduled by the cache fetch protocol. High = unstable upstream.
	FetchRetriesTotal *prometheus.CounterVec

	// Persisted store mutations by operation.
	StoreMutationsTotal *prometheus.CounterVec

	// Failed writes of the persistable subset. Any nonzero value means user
	// state is at risk across restarts.
	StorePersistErrorsTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route, and status class.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Number of HTTP requests currently being served.",
	})

	RateLimitDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_denied_total",
		Help: "Requests denied by the rate limiter.",
	})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_hits_total",
		Help: "Fresh cache hits by resource kind.",
	}, []string{"resource"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_misses_total",
		Help: "Cache misses (absent or expired) by resource kind.",
	}, []string{"resource"})

	CacheStaleServesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_stale_serves_total",
		Help: "Stale values served while revalidating, by resource kind.",
	}, []string{"resource"})

	CacheDedupJoinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_dedup_joins_total",
		Help: "Callers attached to an already in-flight fetch, by resource kind.",
	}, []string{"resource"})

	CacheRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_cache_background_refresh_total",
		Help: "Background refreshes triggered for stale entries, by resource kind.",
	}, []string{"resource"})

	CacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "query_cache_evictions_total",
		Help: "Unobserved entries dropped past their expiry.",
	})

	FetchCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_calls_total",
		Help: "Upstream fetch calls by endpoint and outcome.",
	}, []string{"endpoint", "status"})

	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_duration_seconds",
		Help:    "Upstream fetch latency by endpoint.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	FetchRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_retries_total",
		Help: "Retry attempts scheduled after failed fetches, by resource kind.",
	}, []string{"resource"})

	StoreMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_mutations_total",
		Help: "Persisted store mutations by operation.",
	}, []string{"operation"})

	StorePersistErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "store_persist_errors_total",
		Help: "Failed writes of the persistable subset to durable storage.",
	})

	registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		RateLimitDeniedTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheStaleServesTotal,
		CacheDedupJoinsTotal,
		CacheRefreshTotal,
		CacheEvictionsTotal,
		FetchCallsTotal,
		FetchDuration,
		FetchRetriesTotal,
		StoreMutationsTotal,
		StorePersistErrorsTotal,
	)
}

// MetricsHandler returns the HTTP handler serving the private registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
