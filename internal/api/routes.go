package api

import (
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/clip.cheap/internal/billing"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/health"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/stream"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Jobs    *jobs.Service
	Streams *stream.Service
	Billing *billing.Service
	Webhook *billing.WebhookHandler
	Health  *health.Checker

	JWTSecret   string
	RateLimit   int
	RedisClient *redis.Client
	// Limiter overrides the limiter built from RateLimit and RedisClient.
	Limiter     Limiter
	CORSOrigins []string
	DevMode     bool
}

// NewRouter builds the full HTTP handler: public health and webhook routes
// plus the authenticated /v1 API.
func NewRouter(cfg *Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.LivenessHandler())
	if cfg.Health != nil {
		mux.HandleFunc("GET /health/ready", health.ReadinessHandler(cfg.Health))
	}
	if cfg.Webhook != nil {
		mux.HandleFunc("POST /webhooks/stripe", cfg.Webhook.HandleWebhook)
	}

	apiMux := http.NewServeMux()
	h := &handlers{jobs: cfg.Jobs, streams: cfg.Streams, billing: cfg.Billing}

	for _, kind := range db.AllJobKindValues() {
		feature := "/v1/" + jobs.SpecFor(kind).Feature

		switch kind {
		case db.JobKindStream:
			apiMux.HandleFunc("POST "+feature+"/start", h.startStream)
			apiMux.HandleFunc("POST "+feature+"/{jobId}/stop", h.stopStream)
		default:
			apiMux.HandleFunc("POST "+feature, h.createJob(kind))
			apiMux.HandleFunc("GET "+feature+"/{jobId}/file", h.jobFile(kind))
		}
		apiMux.HandleFunc("GET "+feature+"/{jobId}/status", h.jobStatus(kind))
		apiMux.HandleFunc("GET "+feature+"/history", h.jobHistory(kind))
	}

	apiMux.HandleFunc("GET /v1/subscription", h.getSubscription)
	apiMux.HandleFunc("POST /v1/billing/checkout", h.createCheckout)

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewHybridRateLimiter(cfg.RedisClient, cfg.RateLimit)
	}

	var chain http.Handler = apiMux
	chain = RateLimit(limiter)(chain)
	chain = AuthMiddleware(cfg.JWTSecret)(chain)
	mux.Handle("/v1/", chain)

	var handler http.Handler = mux
	handler = metrics.HTTPMetricsMiddleware(handler)
	handler = CORSWithOrigins(cfg.CORSOrigins, cfg.DevMode)(handler)
	handler = SecurityHeaders(handler)
	handler = Recovery(handler)
	handler = RequestLogger(handler)
	handler = RequestID(handler)
	return handler
}

// ParseOrigins splits a comma-separated CORS_ORIGINS value.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
