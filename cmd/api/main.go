package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reviewpulse/backend/internal/ai"
	"github.com/reviewpulse/backend/internal/cache"
	"github.com/reviewpulse/backend/internal/config"
	"github.com/reviewpulse/backend/internal/dashboard"
	"github.com/reviewpulse/backend/internal/database"
	"github.com/reviewpulse/backend/internal/logging"
	"github.com/reviewpulse/backend/internal/monitoring"
	"github.com/reviewpulse/backend/internal/platform"
	"github.com/reviewpulse/backend/internal/server"
	"github.com/reviewpulse/backend/internal/store"
	"github.com/reviewpulse/backend/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Msg("Starting ReviewPulse API server")

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	redis, err := cache.New(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redis.Close()

	monitoring.Init()

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort)
	}

	// Stores
	brands := store.NewBrandStore(db.Pool)
	sources := store.NewSourceStore(db.Pool)
	jobs := store.NewJobStore(db.Pool)
	reviews := store.NewReviewStore(db.Pool)
	aggregates := store.NewAggregateStore(db.Pool)
	summaries := store.NewSummaryStore(db.Pool)

	// Platform fetchers
	fetchers := platform.NewRegistry(
		platform.NewGoogleClient(cfg.Platforms.Google.BaseURL, cfg.Platforms.Google.APIKey),
		platform.NewFacebookClient(cfg.Platforms.Facebook.BaseURL, cfg.Platforms.Facebook.APIKey),
		platform.NewTrustpilotClient(cfg.Platforms.Trustpilot.BaseURL, cfg.Platforms.Trustpilot.APIKey),
	)

	// AI services
	classifier, err := ai.NewClassifier(&cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sentiment classifier")
	}
	summarizer, err := ai.NewSummarizer(&cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create summarizer")
	}

	// Sync pipeline
	cacheStore := cache.NewStore(redis, &cfg.Cache)
	recalc := dashboard.NewRecalculator(reviews, aggregates, cacheStore)
	ingestor := syncer.NewIngestor(reviews, classifier)
	orch := syncer.NewOrchestrator(sources, jobs, fetchers, ingestor, recalc, cfg.Sync.ErrorMaxLen)
	limiter := syncer.NewManualLimiter(redis, cfg.Sync.ManualCooldown)
	scheduler := syncer.NewScheduler(&cfg.Sync, sources, jobs, orch, limiter)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	if err := scheduler.Start(schedulerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync scheduler")
	}

	// Read services
	dashboards := dashboard.NewService(sources, aggregates, cacheStore)
	summarySvc := dashboard.NewSummaryService(reviews, summaries, summarizer,
		cacheStore, cfg.AI.SummaryMaxReviews, cfg.AI.SummaryValidity)

	srv := server.NewAPIServer(cfg, db.Pool, server.Dependencies{
		Brands:     brands,
		Sources:    sources,
		Jobs:       jobs,
		Reviews:    reviews,
		Scheduler:  scheduler,
		Dashboards: dashboards,
		Summaries:  summarySvc,
		Recalc:     recalc,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight sync jobs finish before the process exits
	scheduler.Stop()
	stopScheduler()

	log.Info().Msg("Server exited gracefully")
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
