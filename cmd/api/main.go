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

	"github.com/abdul-hamid-achik/clip.cheap/internal/api"
	"github.com/abdul-hamid-achik/clip.cheap/internal/billing"
	"github.com/abdul-hamid-achik/clip.cheap/internal/config"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/health"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/abdul-hamid-achik/clip.cheap/internal/stream"
	"github.com/abdul-hamid-achik/clip.cheap/internal/tracing"
	"github.com/abdul-hamid-achik/clip.cheap/internal/worker"
	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEnabled {
		shutdownTracing, err := tracing.Init(ctx, &tracing.Config{
			ServiceName:    "clip-api",
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
		log.Info("tracing enabled", "endpoint", cfg.OTelEndpoint)
	}

	if cfg.AutoMigrate {
		log.Info("running migrations")
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
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

	b := broker.NewRedisStreamsBroker(redisClient)
	log.Info("broker initialized")

	metrics.SetAppInfo("1.0.0", cfg.Environment, "api")

	store := db.NewStore(pool)
	instrumentedStore := metrics.NewInstrumentedStorage(objects)

	stripeClient := billing.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripePriceCreator, cfg.StripePricePro)
	billingService := billing.NewService(stripeClient, store, cfg.BaseURL)
	var webhookHandler *billing.WebhookHandler
	if billingService.IsConfigured() {
		webhookHandler = billing.NewWebhookHandler(billingService, cfg.StripeWebhookSecret, log)
		log.Info("stripe billing configured")
	}

	jobService := jobs.NewService(store, instrumentedStore, worker.NewQueueEnqueuer(b), billingService)

	tools := processor.NewRegistryWithPaths(cfg.FFmpegPath, cfg.FFprobePath, cfg.YtDlpPath)
	for tool, err := range tools.Check() {
		log.Warn("tool unavailable", "tool", tool, "error", err)
	}
	runner := processor.NewExecRunner(tools, processor.DefaultConfig())

	streams := stream.NewService(jobService, store, runner, stream.NewRegistry())
	if n, err := streams.RecoverOrphans(ctx); err != nil {
		log.Error("failed to recover orphaned streams", "error", err)
	} else if n > 0 {
		log.Warn("orphaned streams marked failed", "count", n)
	}

	checker := health.NewChecker(pool, redisClient).
		WithStorage(objects).
		WithTools(tools)

	router := api.NewRouter(&api.Config{
		Jobs:        jobService,
		Streams:     streams,
		Billing:     billingService,
		Webhook:     webhookHandler,
		Health:      checker,
		JWTSecret:   cfg.JWTSecret,
		RateLimit:   cfg.RateLimit,
		RedisClient: redisClient,
		CORSOrigins: cfg.CORSOrigins,
		DevMode:     cfg.Environment == "development",
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	var handler http.Handler = mux
	if cfg.OTelEnabled {
		handler = tracing.HTTPMiddleware("clip-api")(handler)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// File downloads stream large artifacts.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "port", cfg.Port, "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			log.Error("forced shutdown", "error", err)
		}
		if err := streams.Shutdown(shutdownCtx); err != nil {
			log.Error("streams did not stop cleanly", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}
