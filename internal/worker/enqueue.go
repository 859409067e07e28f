package worker

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/tracing"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/google/uuid"
)

// Broker is the part of the job-queue broker the API needs.
type Broker interface {
	Enqueue(ctx context.Context, j *job.Job) error
}

// QueueEnqueuer publishes committed media jobs to the durable queue.
type QueueEnqueuer struct {
	broker Broker
}

var _ jobs.Enqueuer = (*QueueEnqueuer)(nil)

func NewQueueEnqueuer(b Broker) *QueueEnqueuer {
	return &QueueEnqueuer{broker: b}
}

func (e *QueueEnqueuer) Enqueue(ctx context.Context, kind db.JobKind, jobID uuid.UUID) error {
	jobType := jobs.SpecFor(kind).QueueType
	if jobType == "" {
		return fmt.Errorf("%s jobs are not queued", kind)
	}

	ctx, span := tracing.StartJobEnqueueSpan(ctx, string(kind), jobType, jobID.String())
	defer span.End()

	j, err := job.New(jobType, MediaJobPayload{
		JobID: jobID,
		Trace: tracing.Inject(ctx),
	})
	if err != nil {
		return fmt.Errorf("create queue job: %w", err)
	}

	err = e.broker.Enqueue(ctx, j)
	metrics.RecordJobEnqueued(jobType, err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}
