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

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Retry attempts for weather API. Watch for: high retries = unstable upstream.
	WeatherAPIRetriesTotal prometheus.Counter

	// Cache hits per cache type. Hit rate = hits / temperatureLookupsTotal.
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend failures per operation (get/set).
	CacheErrorsTotal *prometheus.CounterVec

	// Concurrent misses for the same city observed before a refresh completed.
	CacheStampedeDetectedTotal prometheus.Counter

	// Time callers spent waiting on a coalesced upstream fetch.
	RequestCoalescingWaitSeconds prometheus.Histogram

	// Cache warming runs (startup and periodic).
	CacheWarmingTotal prometheus.Counter

	// Total temperature lookups through the cache path.
	TemperatureLookupsTotal prometheus.Counter

	// Balance updates by operation and outcome. Watch for: rising
	// weather_unavailable or store_error outcomes.
	BalanceUpdatesTotal *prometheus.CounterVec

	// Distribution of the (unsigned) delta applied to balances.
	BalanceDeltaApplied prometheus.Histogram

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker transitions for the weather upstream.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Current circuit breaker state: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherApiRetriesTotal",
			Help: "Total number of retry attempts for weather API calls",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits per cache type",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend failures per operation",
		},
		[]string{"operation"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Concurrent cache misses for the same city detected before refresh completed",
		},
	)
	RequestCoalescingWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "requestCoalescingWaitSeconds",
			Help:    "Time spent waiting on a coalesced upstream fetch",
			Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	TemperatureLookupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "temperatureLookupsTotal",
			Help: "Total temperature lookups through the cache path",
		},
	)
	BalanceUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balanceUpdatesTotal",
			Help: "Balance updates by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	BalanceDeltaApplied = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "balanceDeltaApplied",
			Help:    "Distribution of temperature-derived deltas applied to balances",
			Buckets: []float64{-40, -20, -10, 0, 5, 10, 15, 20, 30, 40, 50},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions for the weather upstream",
		},
		[]string{"from", "to"},
	)
	CircuitBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Weather upstream circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIRetriesTotal,
		CacheHitsTotal, CacheErrorsTotal, CacheStampedeDetectedTotal,
		RequestCoalescingWaitSeconds, CacheWarmingTotal,
		TemperatureLookupsTotal, BalanceUpdatesTotal, BalanceDeltaApplied,
		RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
	)
}

// MetricsHandler returns the /metrics handler for the service registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordCircuitBreakerTransition records a breaker state change and updates
// the state gauge.
func RecordCircuitBreakerTransition(from, to string, stateValue float64) {
	CircuitBreakerTransitionsTotal.WithLabelValues(from, to).Inc()
	CircuitBreakerState.Set(stateValue)
}
