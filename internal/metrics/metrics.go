package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the engine.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// CacheHits / CacheMisses mirror the distance-matrix cache counters.
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "distmat_cache_hits_total", Help: "Distance matrix cache hits."},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "distmat_cache_misses_total", Help: "Distance matrix cache misses."},
	)
	// CacheSize tracks the number of cached matrices.
	CacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "distmat_cache_entries", Help: "Distance matrix cache entry count."},
	)

	// PoolActiveWorkers tracks solver pool workers currently running a job.
	PoolActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "solver_pool_active_workers", Help: "Worker pool slots currently executing an algorithm."},
	)
	// SolveDuration records per-algorithm solve wall time in seconds.
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Algorithm solve duration in seconds.", Buckets: []float64{.005, .05, .25, 1, 5, 15, 30, 60}},
		[]string{"algorithm", "family", "status"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the engine registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(CacheHits)
		Registry.MustRegister(CacheMisses)
		Registry.MustRegister(CacheSize)
		Registry.MustRegister(PoolActiveWorkers)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
