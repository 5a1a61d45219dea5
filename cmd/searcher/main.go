package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ingesthandler "github.com/Adithya-Monish-Kumar-K/relevance-service/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/resource/events"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/relevance-service/pkg/resilience"
)

const snippetLen = 160

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		slog.Error("relevance service failed", "error", err)
		os.Exit(1)
	}
}

// run owns every resource the service opens so that deferred cleanup happens
// before main exits.
func run(cfg *config.Config) error {
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting relevance service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	store, closeStore, err := openStore(ctx, cfg.Postgres, m, checker)
	if err != nil {
		return err
	}
	defer closeStore()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		checker.Register("redis", health.Static(health.StatusDegraded, "not connected"))
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	// A typed nil *QueryCache would make the interface non-nil.
	var inv events.Invalidator
	if queryCache != nil {
		inv = queryCache
	}

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.Topics.ResourceChanged
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		publisher = events.NewPublisher(producer, func(op events.Op) {
			m.ResourceEventsTotal.WithLabelValues(string(op), "published").Inc()
		})
		consumer := kafka.NewConsumer(cfg.Kafka, topic, events.HandleChange(inv, func(op events.Op) {
			m.ResourceEventsTotal.WithLabelValues(string(op), "consumed").Inc()
		}))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("change event consumer stopped", "error", err)
			}
		}()
		defer consumer.Close()
		slog.Info("resource change events enabled", "brokers", cfg.Kafka.Brokers, "topic", topic)
	} else {
		slog.Warn("no kafka brokers configured, change events disabled")
	}

	searchH := handler.New(executor.New(store, snippetLen, m), queryCache, m, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		MinScore:     cfg.Search.MinScore,
		MaxQueryLen:  cfg.Search.MaxQueryLen,
	})
	resourceH := ingesthandler.New(store, publisher, inv)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/score", searchH.Score)
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", searchH.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", searchH.CacheInvalidate)
	mux.HandleFunc("POST /api/v1/resources", resourceH.Create)
	mux.HandleFunc("GET /api/v1/resources", resourceH.List)
	mux.HandleFunc("GET /api/v1/resources/{id}", resourceH.Get)
	mux.HandleFunc("DELETE /api/v1/resources/{id}", resourceH.Delete)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		go limiter.Cleanup(ctx, time.Minute)
		chain = middleware.RateLimit(limiter, m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("relevance service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	slog.Info("relevance service stopped")
	return nil
}

// openStore connects to Postgres when a host is configured and falls back to
// the in-memory store when it is not configured or unreachable. The returned
// func releases the connection.
func openStore(ctx context.Context, cfg config.PostgresConfig, m *metrics.Metrics, checker *health.Checker) (resource.Store, func(), error) {
	if cfg.Host == "" {
		slog.Warn("postgres not configured, using in-memory resource store")
		checker.Register("resource_store", health.Static(health.StatusUp, "in-memory"))
		return resource.NewMemoryStore(), func() {}, nil
	}

	db, err := postgres.New(cfg)
	if err != nil {
		slog.Warn("postgres unavailable, using in-memory resource store", "error", err)
		checker.Register("resource_store", health.Static(health.StatusDegraded, "in-memory fallback"))
		return resource.NewMemoryStore(), func() {}, nil
	}

	breaker := resilience.NewCircuitBreaker("postgres", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, state float64) {
			m.CircuitBreakerState.WithLabelValues(name).Set(state)
		},
	})
	m.CircuitBreakerState.WithLabelValues("postgres").Set(0)

	store := resource.NewPostgresStore(db, breaker)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("creating resources table: %w", err)
	}
	checker.Register("resource_store", health.PingCheck(store.Ping, health.StatusDown))
	slog.Info("postgres resource store ready", "host", cfg.Host, "database", cfg.Database)
	return store, func() { db.Close() }, nil
}
