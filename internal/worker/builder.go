package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/video"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/abdul-hamid-achik/clip.cheap/internal/tracing"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
)

// Pipeline renders a job's artifact inside jc's workdir and returns its
// local path.
type Pipeline[P jobs.Params] func(jc *JobContext, params P) (string, error)

// MediaJobConfig configures a handler for one job kind.
type MediaJobConfig[P jobs.Params] struct {
	Kind db.JobKind
	Run  Pipeline[P]
}

// MediaJobBuilder creates queue handlers sharing the claim, upload, complete
// and fail steps. Only the pipeline differs per kind.
type MediaJobBuilder[P jobs.Params] struct {
	deps   *Dependencies
	config MediaJobConfig[P]
}

func NewMediaJobBuilder[P jobs.Params](deps *Dependencies, config MediaJobConfig[P]) *MediaJobBuilder[P] {
	return &MediaJobBuilder[P]{
		deps:   deps,
		config: config,
	}
}

// Build returns a job handler function with the standard processing flow.
func (b *MediaJobBuilder[P]) Build() func(context.Context, *job.Job) error {
	spec := jobs.SpecFor(b.config.Kind)

	return func(ctx context.Context, j *job.Job) error {
		var payload MediaJobPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			logger.FromContext(ctx).Error("invalid payload", "queue_job_id", j.ID, "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}

		ctx = tracing.Extract(ctx, payload.Trace)
		ctx, span := tracing.StartJobSpan(ctx, string(b.config.Kind), spec.QueueType, payload.JobID.String())
		defer span.End()

		ctx = logger.WithJobID(ctx, payload.JobID.String(), string(b.config.Kind))
		log := logger.FromContext(ctx)
		id := pgtype.UUID{Bytes: payload.JobID, Valid: true}

		row, err := b.deps.Store.GetMediaJob(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn("job row not found")
			return middleware.Permanent(fmt.Errorf("job %s not found", payload.JobID))
		}
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		if row.Kind != b.config.Kind {
			return middleware.Permanent(fmt.Errorf("job %s is a %s job, not %s", payload.JobID, row.Kind, b.config.Kind))
		}

		row, err = b.deps.Store.ClaimMediaJob(ctx, db.ClaimMediaJobParams{
			ID:   id,
			From: spec.Initial,
			To:   spec.Running,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			log.Info("job already claimed or finished, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}

		tracing.AddSpanAttributes(ctx,
			attribute.String("job.owner_id", uuid.UUID(row.OwnerID.Bytes).String()),
		)

		start := time.Now()
		log.Info("job started")

		outputKey, err := b.process(ctx, log, row)
		if err != nil {
			return b.fail(ctx, log, id, start, err)
		}

		// The row must leave its running status even if the job context was
		// cancelled after the pipeline returned.
		_, err = b.deps.Store.CompleteMediaJob(context.WithoutCancel(ctx), db.CompleteMediaJobParams{
			ID:             id,
			From:           spec.Running,
			To:             spec.Success,
			OutputLocation: outputKey,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			// Recovery failed the job while we were still running.
			log.Warn("job left running status before completion", "output_key", outputKey)
			return nil
		}
		if err != nil {
			return b.fail(ctx, log, id, start, fmt.Errorf("failed to complete job: %w", err))
		}

		duration := time.Since(start)
		metrics.RecordJobProcessed(spec.QueueType, "completed", duration.Seconds())
		log.Info("job completed", "duration_ms", duration.Milliseconds(), "output_key", outputKey)
		return nil
	}
}

func (b *MediaJobBuilder[P]) process(ctx context.Context, log *slog.Logger, row db.MediaJob) (string, error) {
	decoded, err := jobs.DecodeParams(b.config.Kind, row.Params)
	if err != nil {
		return "", fmt.Errorf("stored params are invalid: %w", err)
	}
	params, ok := decoded.(P)
	if !ok {
		return "", fmt.Errorf("unexpected params type %T", decoded)
	}

	workDir, err := os.MkdirTemp(b.deps.WorkDir, "clip-"+string(b.config.Kind)+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create workdir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("failed to remove workdir", "dir", workDir, "error", err)
		}
	}()

	jc := &JobContext{
		Context: ctx,
		Log:     log,
		JobID:   uuid.UUID(row.ID.Bytes),
		OwnerID: uuid.UUID(row.OwnerID.Bytes),
		Kind:    b.config.Kind,
		WorkDir: workDir,
		Deps:    b.deps,
		Report:  NewReporter(b.deps.Store, row.ID, log),
	}

	output, err := b.config.Run(jc, params)
	if err != nil {
		return "", err
	}

	key := storage.OutputKey(jc.OwnerID.String(), jc.JobID.String(), filepath.Base(output))
	uploadStart := time.Now()
	size, err := storage.UploadFile(ctx, b.deps.Storage, key, output, video.ContentType(filepath.Ext(output)))
	if err != nil {
		return "", fmt.Errorf("failed to upload output: %w", err)
	}
	metrics.RecordJobStage(jobs.SpecFor(b.config.Kind).QueueType, "upload", time.Since(uploadStart).Seconds())
	log.Debug("output uploaded", "key", key, "size", size)

	return key, nil
}

// fail marks the job FAILED and returns a permanent error so the queue never
// redelivers it.
func (b *MediaJobBuilder[P]) fail(ctx context.Context, log *slog.Logger, id pgtype.UUID, start time.Time, cause error) error {
	tracing.RecordError(ctx, cause)
	log.Error("job failed", "error", cause, "stderr_tail", stderrTail(cause))

	if ctx.Err() != nil && !errors.Is(cause, ctx.Err()) {
		cause = fmt.Errorf("%w: %w", ctx.Err(), cause)
	}
	if _, err := b.deps.Store.FailMediaJob(context.WithoutCancel(ctx), db.FailMediaJobParams{
		ID:           id,
		ErrorMessage: FailureMessage(cause),
	}); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Error("failed to mark job failed", "error", err)
	}

	metrics.RecordJobProcessed(jobs.SpecFor(b.config.Kind).QueueType, "failed", time.Since(start).Seconds())
	return middleware.Permanent(cause)
}

// FailureMessage is the error text stored on the job row and shown to the
// owner. Tool output stays in the logs.
func FailureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "job timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "job cancelled"
	}
	var notFound *processor.ToolNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("%s is not installed on the worker; install it or set its path", notFound.Tool)
	}
	var failure *processor.ToolFailureError
	if errors.As(err, &failure) {
		return fmt.Sprintf("%s failed with exit code %d", failure.Tool, failure.ExitCode)
	}
	return err.Error()
}

func stderrTail(err error) []string {
	var failure *processor.ToolFailureError
	if errors.As(err, &failure) {
		return failure.StderrTail
	}
	return nil
}
