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

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content/store"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/feed"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/adapter"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/invalidator"
	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/content-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting content search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	src := store.New(db, cfg.Search, m)

	mem, err := cache.NewMemory(cache.MemoryConfig{MaxEntries: cfg.Search.CacheMaxEntries, Metrics: m})
	if err != nil {
		slog.Error("failed to create result cache", "error", err)
		os.Exit(1)
	}
	mem.StartJanitor(ctx, cfg.Search.CacheSweepInterval)

	var resultCache cache.Cache = mem
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared cache tier disabled", "error", err)
		} else {
			defer redisClient.Close()
			resultCache = cache.NewLayered(mem, cache.NewRedis(redisClient, nil))
			slog.Info("shared cache tier enabled", "addr", cfg.Redis.Addr)
		}
	}

	adapters := router.NewAdapters(src, adapter.Options{
		FallbackPageSize: cfg.Search.FallbackPageSize,
		Metrics:          m,
	})
	rt := router.New(adapters, resultCache, router.Config{
		CacheTTL:             cfg.Search.CacheTTL,
		MaxConcurrentQueries: int64(cfg.Search.MaxConcurrentQueries),
		Metrics:              m,
	})

	agg := analytics.NewAggregator()
	var sink analytics.Sink
	if cfg.Kafka.Enabled {
		host, _ := os.Hostname()
		// Every replica must see every event, so each gets its own group.
		replicaKafka := cfg.Kafka
		replicaKafka.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-" + host

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		batch := collector.New(producer, collector.Config{
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval,
			MaxBuffered:   cfg.Analytics.MaxBuffered,
			Metrics:       m,
		})
		batch.Start(ctx)
		defer batch.Close()
		sink = batch

		analyticsConsumer := kafka.NewConsumer(replicaKafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()

		inv := invalidator.New(rt)
		mutationConsumer := kafka.NewConsumer(replicaKafka, cfg.Kafka.Topics.PostMutations, inv.Handler())
		go func() {
			if err := mutationConsumer.Start(ctx); err != nil {
				slog.Error("post mutation consumer error", "error", err)
			}
		}()
		slog.Info("kafka wiring started",
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
			"mutations_topic", cfg.Kafka.Topics.PostMutations,
		)
	}
	events := analytics.NewCollector(agg, sink, false)

	var snapshots analytics.SnapshotLister
	if cfg.Analytics.SnapshotInterval > 0 {
		snapStore := aggregator.NewStore(db)
		if err := snapStore.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare analytics snapshots", "error", err)
			os.Exit(1)
		}
		snapDone := snapStore.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		defer func() { <-snapDone }()
		snapshots = snapStore
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(src.Ping, false))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
	}

	searchH := handler.New(rt, events, handler.Config{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxResults:    cfg.Search.MaxResults,
		DebounceDelay: cfg.Search.DebounceDelay,
		AllowOrigins:  cfg.Server.AllowOrigins,
		Metrics:       m,
	})
	feedH := feed.NewHandler(feed.NewService(src, feed.Config{
		TopN:          cfg.Feed.TopN,
		CandidatePage: cfg.Feed.CandidatePage,
	}), events, m)
	analyticsH := analytics.NewHandler(agg, snapshots)

	api := http.NewServeMux()
	searchH.Register(api)
	api.HandleFunc("POST /api/v1/feed", feedH.Feed)
	api.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	api.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	api.HandleFunc("GET /health/live", checker.LiveHandler())
	api.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux := http.NewServeMux()
	mux.Handle("/", middleware.Timeout(cfg.Server.WriteTimeout)(api))
	mux.HandleFunc("GET /api/v1/search/live", searchH.Live)

	var chain http.Handler = mux
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute, nil)
		limiter.StartPruning(ctx)
		chain = middleware.RateLimit(limiter)(chain)
	}
	if len(cfg.Server.AllowOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins))(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
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

	slog.Info("content search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("content search service stopped")
}
