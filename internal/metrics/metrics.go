package metrics

import (
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path", "status"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	StorageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_bytes_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	JobsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_jobs_created_total",
			Help: "Total number of media jobs admitted",
		},
		[]string{"kind"},
	)

	JobsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_jobs_rejected_total",
			Help: "Media job creations rejected by admission control",
		},
		[]string{"kind", "reason"},
	)

	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type", "status"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobs_processing_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"type", "stage"},
	)

	JobsRecoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_jobs_recovered_total",
			Help: "Jobs touched by stale-job recovery",
		},
		[]string{"action"},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_active_jobs",
			Help: "Number of jobs currently being processed by workers",
		},
	)

	WorkerPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_size",
			Help: "Size of the worker pool",
		},
	)

	ToolRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_tool_runs_total",
			Help: "External tool invocations by result",
		},
		[]string{"tool", "result"},
	)

	ToolRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_tool_run_duration_seconds",
			Help:    "Wall time of external tool invocations",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900, 3600},
		},
		[]string{"tool"},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_streams_active",
			Help: "Restream processes currently registered",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "environment", "service"},
	)

	AppUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_up",
			Help: "Application is up and running",
		},
	)

	ExportsByTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_exports_by_tier_total",
			Help: "Exports charged against a subscription, by tier",
		},
		[]string{"tier"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_rate_limit_hits_total",
			Help: "Requests rejected by the request throttle",
		},
		[]string{"limiter"},
	)

	QuotaExceededTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_quota_exceeded_total",
			Help: "Total quota exceeded events by tier",
		},
		[]string{"tier"},
	)
)

func NormalizePath(path string) string {
	return uuidRegex.ReplaceAllString(path, ":id")
}

func RecordJobCreated(kind string) {
	JobsCreatedTotal.WithLabelValues(kind).Inc()
}

func RecordJobRejected(kind, reason string) {
	JobsRejectedTotal.WithLabelValues(kind, reason).Inc()
}

func RecordJobEnqueued(jobType string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JobsEnqueuedTotal.WithLabelValues(jobType, status).Inc()
}

func RecordJobProcessed(jobType, status string, durationSeconds float64) {
	JobsProcessedTotal.WithLabelValues(jobType, status).Inc()
	JobsProcessingDuration.WithLabelValues(jobType, "total").Observe(durationSeconds)
}

func RecordJobStage(jobType, stage string, durationSeconds float64) {
	JobsProcessingDuration.WithLabelValues(jobType, stage).Observe(durationSeconds)
}

func RecordJobsRecovered(action string, n int) {
	if n > 0 {
		JobsRecoveredTotal.WithLabelValues(action).Add(float64(n))
	}
}

// RecordToolRun counts one external tool invocation. result is one of
// success, failure, not_found or interrupted.
func RecordToolRun(tool, result string, duration time.Duration) {
	ToolRunsTotal.WithLabelValues(tool, result).Inc()
	if result != "not_found" {
		ToolRunDuration.WithLabelValues(tool).Observe(duration.Seconds())
	}
}

func SetStreamsActive(n int) {
	StreamsActive.Set(float64(n))
}

func SetAppInfo(version, environment, service string) {
	AppInfo.WithLabelValues(version, environment, service).Set(1)
	AppUp.Set(1)
}

func SetWorkerPoolSize(size int) {
	WorkerPoolSize.Set(float64(size))
}

func RecordExportByTier(tier string) {
	ExportsByTier.WithLabelValues(tier).Inc()
}

func RecordRateLimitHit(limiter string) {
	RateLimitHits.WithLabelValues(limiter).Inc()
}

func RecordQuotaExceeded(tier string) {
	QuotaExceededTotal.WithLabelValues(tier).Inc()
}
