package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/google/uuid"
)

const (
	InterruptedMessage = "interrupted: the worker stopped before the job finished"
	recoveryBatchSize  = 100
)

// Recovery repairs jobs a crashed worker or a failed enqueue left behind.
type Recovery struct {
	store     db.Querier
	enqueuer  jobs.Enqueuer
	threshold time.Duration
	now       func() time.Time
}

type RecoveryStats struct {
	Requeued int
	Failed   int
}

func NewRecovery(store db.Querier, enqueuer jobs.Enqueuer, threshold time.Duration) *Recovery {
	return &Recovery{
		store:     store,
		enqueuer:  enqueuer,
		threshold: threshold,
		now:       time.Now,
	}
}

// RunOnce fails running jobs older than the threshold and re-enqueues stale
// pending ones. Duplicate deliveries are harmless: the claim guard lets only
// one handler run a job.
func (r *Recovery) RunOnce(ctx context.Context) (*RecoveryStats, error) {
	log := logger.FromContext(ctx)
	before := pgTime(r.now().Add(-r.threshold))
	stats := &RecoveryStats{}

	failed, err := r.store.FailStaleRunningJobs(ctx, db.FailStaleRunningJobsParams{
		Before:       before,
		ErrorMessage: InterruptedMessage,
	})
	if err != nil {
		return stats, fmt.Errorf("failed to fail stale running jobs: %w", err)
	}
	stats.Failed = len(failed)
	metrics.RecordJobsRecovered("failed", stats.Failed)

	pending, err := r.store.ListStalePendingJobs(ctx, db.ListStalePendingJobsParams{
		Before: before,
		Limit:  recoveryBatchSize,
	})
	if err != nil {
		return stats, fmt.Errorf("failed to list stale pending jobs: %w", err)
	}
	for _, row := range pending {
		id := uuid.UUID(row.ID.Bytes)
		if err := r.enqueuer.Enqueue(ctx, row.Kind, id); err != nil {
			log.Warn("failed to re-enqueue job", "job_id", id.String(), "kind", row.Kind, "error", err)
			continue
		}
		stats.Requeued++
	}
	metrics.RecordJobsRecovered("requeued", stats.Requeued)

	if stats.Failed > 0 || stats.Requeued > 0 {
		log.Info("job recovery finished", "failed", stats.Failed, "requeued", stats.Requeued)
	}
	return stats, nil
}

// Run calls RunOnce immediately and then every interval until ctx is done.
func (r *Recovery) Run(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)
	if _, err := r.RunOnce(ctx); err != nil {
		log.Error("job recovery failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				log.Error("job recovery failed", "error", err)
			}
		}
	}
}
