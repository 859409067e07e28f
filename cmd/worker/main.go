package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/config"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/health"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/abdul-hamid-achik/clip.cheap/internal/tracing"
	clipworker "github.com/abdul-hamid-achik/clip.cheap/internal/worker"
	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "clip-worker").Logger()

	if cfg.OTelEnabled {
		shutdownTracing, err := tracing.Init(ctx, &tracing.Config{
			ServiceName:    "clip-worker",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.OTelEndpoint,
			Enabled:        true,
			SampleRate:     1.0,
		})
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	log.Info("connecting to database")
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("database connected")

	log.Info("connecting to object storage", "driver", cfg.StorageDriver)
	objects, err := storage.Open(ctx, storage.Options{
		Driver:    cfg.StorageDriver,
		LocalPath: cfg.LocalStoragePath,
		MinIO: storage.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Region:    cfg.MinIORegion,
		},
	})
	if err != nil {
		return err
	}
	log.Info("object storage connected")

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := broker.NewRedisStreamsBroker(redisClient,
		broker.WithWorkerID(fmt.Sprintf("worker-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	store := db.NewStore(pool)

	metrics.SetAppInfo("1.0.0", cfg.Environment, "worker")
	metrics.SetWorkerPoolSize(cfg.WorkerConcurrency)

	tools := processor.NewRegistryWithPaths(cfg.FFmpegPath, cfg.FFprobePath, cfg.YtDlpPath)
	for tool, err := range tools.Check() {
		log.Warn("tool unavailable; jobs that need it will fail", "tool", tool, "error", err)
	}

	deps := &clipworker.Dependencies{
		Store:   store,
		Storage: metrics.NewInstrumentedStorage(objects),
		Runner:  processor.NewExecRunner(tools, processor.DefaultConfig()),
		WorkDir: cfg.WorkDir,
	}

	log.Info("registering job handlers")
	registry := worker.NewRegistry()
	for jobType, handler := range clipworker.Handlers(deps) {
		if err := registry.Register(jobType, handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", jobType, err)
		}
	}
	log.Info("handlers registered", "count", len(registry.Types()))

	registry.Use(
		middleware.RecoveryMiddleware(zerologger),
		middleware.LoggingMiddleware(zerologger),
		middleware.TimeoutMiddleware(cfg.JobTimeout),
		middleware.MetricsMiddleware(metrics.NewPrometheusCollector()),
	)

	log.Info("creating worker pool", "concurrency", cfg.WorkerConcurrency)

	workerPool := worker.NewPool(b, registry,
		worker.WithConcurrency(cfg.WorkerConcurrency),
		worker.WithPoolQueues([]string{"default"}),
		worker.WithPoolPollInterval(time.Second),
		worker.WithShutdownTimeout(30*time.Second),
		worker.WithPoolLogger(zerologger),
	)

	recovery := clipworker.NewRecovery(store, clipworker.NewQueueEnqueuer(b), cfg.StaleJobThreshold)
	go recovery.Run(logger.WithLogger(ctx, log), cfg.RecoveryInterval)

	checker := health.NewChecker(pool, redisClient).WithStorage(objects).WithTools(tools)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/health", health.LivenessHandler())
	metricsMux.HandleFunc("/health/ready", health.ReadinessHandler(checker))

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server starting", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	poolErr := make(chan error, 1)
	go func() {
		log.Info("starting worker pool")
		poolErr <- workerPool.Start(ctx)
	}()

	select {
	case err := <-poolErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("worker pool error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := workerPool.Stop(shutdownCtx); err != nil {
			log.Error("error stopping pool", "error", err)
		}

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping metrics server", "error", err)
		}

		cancel()
	}

	log.Info("worker stopped gracefully")
	return nil
}
