package main

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qfleet/internal/api"
	"qfleet/internal/buildinfo"
	"qfleet/internal/config"
	"qfleet/internal/metrics"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer srvDeps.Shutdown()

	mux := http.NewServeMux()

	// Solvers
	mux.HandleFunc("/v1/solve/classical", srvDeps.RateLimit(srvDeps.SolveClassicalHandler))
	mux.HandleFunc("/v1/solve/quantum", srvDeps.RateLimit(srvDeps.SolveQuantumHandler))
	mux.HandleFunc("/v1/compare", srvDeps.RateLimit(srvDeps.CompareHandler))

	// Run history
	mux.HandleFunc("/v1/comparisons", srvDeps.ComparisonsHandler)
	mux.HandleFunc("/v1/comparisons/", srvDeps.ComparisonByIDHandler)

	// Introspection
	mux.HandleFunc("/v1/algorithms", srvDeps.AlgorithmsHandler)
	mux.HandleFunc("/v1/performance", srvDeps.PerformanceHandler)
	mux.HandleFunc("/v1/problems/random", srvDeps.RandomProblemHandler)
	mux.HandleFunc("/v1/validate", srvDeps.ValidateHandler)

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Run event stream
	mux.HandleFunc("/v1/runs/ws", srvDeps.RunEventsWSHandler)

	// Health
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"` + buildinfo.Version + `"}`))
	})

	// Metrics
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s (version %s)", cfg.Addr, buildinfo.Version)
	// Start webhook worker
	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}
