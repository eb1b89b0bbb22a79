package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"qfleet/internal/compare"
	"qfleet/internal/config"
	"qfleet/internal/distmat"
	"qfleet/internal/store"
	"qfleet/internal/webhooks"
)

type Server struct {
	Store   store.Store
	Pub     *webhooks.Publisher
	Broker  EventBroker
	Engine  *compare.Orchestrator
	Pool    *compare.Pool
	Cfg     config.Config
	limiter *rate.Limiter
}

// NewServer creates a Server. With DATABASE_URL unset the in-memory
// store is used; with REDIS_URL set, run events fan out over Redis.
func NewServer(cfg config.Config) (*Server, error) {
	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		// Dev helper; set DB_MIGRATE=false when migrations run elsewhere.
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		s = sp
	}

	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	pool := compare.NewPool(cfg.Engine.PoolSize)
	cache := distmat.NewCache(cfg.Engine.CacheCapacity, nil)

	return &Server{
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Broker:  broker,
		Engine:  compare.NewOrchestrator(cache, pool),
		Pool:    pool,
		Cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst),
	}, nil
}

// Shutdown drains the worker pool.
func (s *Server) Shutdown() { s.Pool.Shutdown() }

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}

// RateLimit applies the shared token bucket to a handler.
func (s *Server) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeProblem(w, http.StatusTooManyRequests, "Rate Limited", "request rate exceeded", r.URL.Path)
			return
		}
		next(w, r)
	}
}
