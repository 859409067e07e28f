package metrics

import (
	"time"
)

// PrometheusCollector feeds job-queue pool events into the job metrics.
type PrometheusCollector struct{}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{}
}

func (c *PrometheusCollector) JobStarted(jobType, queue string) {
	WorkerPoolActiveJobs.Inc()
}

func (c *PrometheusCollector) JobCompleted(jobType, queue string, duration time.Duration) {
	WorkerPoolActiveJobs.Dec()
	RecordJobProcessed(jobType, "success", duration.Seconds())
}

// JobFailed also covers claims that were skipped; media handlers never retry,
// so every failure here is final.
func (c *PrometheusCollector) JobFailed(jobType, queue string, duration time.Duration) {
	WorkerPoolActiveJobs.Dec()
	RecordJobProcessed(jobType, "error", duration.Seconds())
}

func (c *PrometheusCollector) JobRetrying(jobType, queue string, attempt int) {
	JobsProcessedTotal.WithLabelValues(jobType, "retry").Inc()
}
