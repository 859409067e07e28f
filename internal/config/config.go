package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverMinIO = "minio"
	StorageDriverLocal = "local"
)

type Config struct {
	Port        int
	MetricsPort int
	BaseURL     string
	CORSOrigins []string
	RateLimit   int

	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string
	AutoMigrate bool

	StorageDriver    string
	LocalStoragePath string
	MinIOEndpoint    string
	MinIOAccessKey   string
	MinIOSecretKey   string
	MinIOBucket      string
	MinIOUseSSL      bool
	MinIORegion      string

	FFmpegPath  string
	FFprobePath string
	YtDlpPath   string
	WorkDir     string

	WorkerConcurrency int
	JobTimeout        time.Duration
	StaleJobThreshold time.Duration
	RecoveryInterval  time.Duration
	RetentionDays     int

	JWTSecret string

	OTelEnabled  bool
	OTelEndpoint string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceCreator  string
	StripePricePro      string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	var err error

	cfg.Port = getEnvInt("PORT", 8080)
	cfg.MetricsPort = getEnvInt("METRICS_PORT", 9090)
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	cfg.RateLimit = getEnvInt("RATE_LIMIT", 120)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	cfg.AutoMigrate = getEnvBool("AUTO_MIGRATE", true)

	cfg.StorageDriver = getEnvString("STORAGE_DRIVER", StorageDriverMinIO)
	cfg.LocalStoragePath = getEnvString("LOCAL_STORAGE_PATH", "./data/storage")
	if cfg.StorageDriver == StorageDriverMinIO {
		cfg.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
		if cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required")
		}

		cfg.MinIOAccessKey = os.Getenv("MINIO_ACCESS_KEY")
		if cfg.MinIOAccessKey == "" {
			return nil, fmt.Errorf("MINIO_ACCESS_KEY is required")
		}

		cfg.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
		if cfg.MinIOSecretKey == "" {
			return nil, fmt.Errorf("MINIO_SECRET_KEY is required")
		}
	}
	cfg.MinIOBucket = getEnvString("MINIO_BUCKET", "clips")
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.MinIORegion = getEnvString("MINIO_REGION", "us-east-1")

	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.FFprobePath = getEnvString("FFPROBE_PATH", "ffprobe")
	cfg.YtDlpPath = getEnvString("YTDLP_PATH", "yt-dlp")
	cfg.WorkDir = getEnvString("WORK_DIR", os.TempDir())

	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 4)
	cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", "60m")
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}
	cfg.StaleJobThreshold, err = getEnvDuration("STALE_JOB_THRESHOLD", "90m")
	if err != nil {
		return nil, fmt.Errorf("invalid STALE_JOB_THRESHOLD: %w", err)
	}
	cfg.RecoveryInterval, err = getEnvDuration("RECOVERY_INTERVAL", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid RECOVERY_INTERVAL: %w", err)
	}
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 14)

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.OTelEnabled = getEnvBool("OTEL_ENABLED", false)
	cfg.OTelEndpoint = getEnvString("OTEL_ENDPOINT", "localhost:4317")

	// Stripe (optional)
	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.StripePriceCreator = os.Getenv("STRIPE_PRICE_CREATOR")
	cfg.StripePricePro = os.Getenv("STRIPE_PRICE_PRO")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}

	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("invalid worker concurrency: %d", c.WorkerConcurrency)
	}

	switch c.StorageDriver {
	case StorageDriverMinIO, StorageDriverLocal:
	default:
		return fmt.Errorf("invalid storage driver: %q", c.StorageDriver)
	}

	if c.StaleJobThreshold <= c.JobTimeout {
		return fmt.Errorf("stale job threshold (%s) must exceed job timeout (%s)", c.StaleJobThreshold, c.JobTimeout)
	}

	if c.RetentionDays < 1 {
		return fmt.Errorf("invalid retention days: %d", c.RetentionDays)
	}

	return nil
}
