package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/video"
	"github.com/abdul-hamid-achik/clip.cheap/internal/worker"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	DefaultStopTimeout = 10 * time.Second
	OrphanedMessage    = "interrupted: the server restarted while the stream was running"
)

// Service runs restream jobs inside the API process.
type Service struct {
	jobs        *jobs.Service
	store       db.Querier
	runner      processor.Runner
	registry    *Registry
	stopTimeout time.Duration

	wg sync.WaitGroup
}

func NewService(jobsSvc *jobs.Service, store db.Querier, runner processor.Runner, registry *Registry) *Service {
	return &Service{
		jobs:        jobsSvc,
		store:       store,
		runner:      runner,
		registry:    registry,
		stopTimeout: DefaultStopTimeout,
	}
}

// Start admits a stream job, spawns ffmpeg and watches it until exit.
// A spawn failure marks the job FAILED and is returned to the caller.
func (s *Service) Start(ctx context.Context, ownerID uuid.UUID, p *jobs.StreamParams) (*jobs.Job, error) {
	j, err := s.jobs.CreateClaimed(ctx, ownerID, p)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With("job_id", j.ID.String(), "job_kind", string(db.JobKindStream))
	id := pgtype.UUID{Bytes: j.ID, Valid: true}

	targets := p.RestreamTargets()
	args, err := video.RestreamArgs(video.RestreamParams{
		Source:           p.SourceURL,
		Targets:          targets,
		VideoBitrateKbps: p.VideoBitrateKbps,
		Preset:           p.Preset,
		Loop:             p.Loop,
	})
	if err != nil {
		s.markFailed(ctx, log, id, err)
		return nil, err
	}

	// The process outlives the request that started it.
	procCtx, cancel := context.WithCancel(logger.WithLogger(context.WithoutCancel(ctx), log))
	proc, err := s.runner.Start(procCtx, processor.ToolFFmpeg, args)
	if err != nil {
		cancel()
		s.markFailed(ctx, log, id, err)
		return nil, err
	}

	h := &handle{
		owner:    ownerID,
		proc:     proc,
		cancel:   cancel,
		targets:  video.RedactTargets(targets),
		finished: make(chan struct{}),
	}
	s.registry.add(j.ID, h)
	metrics.SetStreamsActive(s.registry.Len())
	log.Info("stream started", "pid", proc.Pid(), "targets", h.targets)

	s.wg.Add(1)
	go s.watch(procCtx, log, j.ID, h)

	return j, nil
}

func (s *Service) watch(ctx context.Context, log *slog.Logger, jobID uuid.UUID, h *handle) {
	defer s.wg.Done()
	defer close(h.finished)
	defer h.cancel()

	err := h.proc.Wait()
	s.registry.remove(jobID)
	metrics.SetStreamsActive(s.registry.Len())

	id := pgtype.UUID{Bytes: jobID, Valid: true}
	if err == nil || h.stopRequested.Load() {
		_, cerr := s.store.CompleteMediaJob(ctx, db.CompleteMediaJobParams{
			ID:             id,
			From:           db.JobStatusStarting,
			To:             db.JobStatusEnded,
			OutputLocation: h.targets,
		})
		if cerr != nil {
			log.Error("failed to mark stream ended", "error", cerr)
			return
		}
		log.Info("stream ended", "stop_requested", h.stopRequested.Load())
		return
	}

	log.Error("stream exited", "error", err, "stderr_tail", h.proc.StderrTail())
	s.markFailed(ctx, log, id, err)
}

func (s *Service) markFailed(ctx context.Context, log *slog.Logger, id pgtype.UUID, cause error) {
	_, err := s.store.FailMediaJob(context.WithoutCancel(ctx), db.FailMediaJobParams{
		ID:           id,
		ErrorMessage: worker.FailureMessage(cause),
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		log.Error("failed to mark stream failed", "error", err)
	}
}

// Stop signals the owner's running stream and waits for its row to settle.
func (s *Service) Stop(ctx context.Context, ownerID, jobID uuid.UUID) (*jobs.Job, error) {
	if _, err := s.jobs.Get(ctx, ownerID, db.JobKindStream, jobID); err != nil {
		return nil, err
	}

	h, ok := s.registry.get(jobID)
	if !ok || h.owner != ownerID {
		return nil, apperror.ErrStreamNotRunning
	}

	h.stopRequested.Store(true)
	if err := h.proc.Stop(s.stopTimeout); err != nil {
		return nil, fmt.Errorf("failed to stop stream: %w", err)
	}

	select {
	case <-h.finished:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.jobs.Get(ctx, ownerID, db.JobKindStream, jobID)
}

// Shutdown stops every running stream and waits for the watchers.
func (s *Service) Shutdown(ctx context.Context) error {
	for _, h := range s.registry.all() {
		h.stopRequested.Store(true)
		if err := h.proc.Stop(s.stopTimeout); err != nil {
			logger.FromContext(ctx).Warn("failed to stop stream", "pid", h.proc.Pid(), "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecoverOrphans fails STARTING streams left by a previous process. It must
// run before Start is first called.
func (s *Service) RecoverOrphans(ctx context.Context) (int, error) {
	ids, err := s.store.FailOrphanedStreams(ctx, db.FailOrphanedStreamsParams{
		Before:       pgtype.Timestamptz{Time: time.Now(), Valid: true},
		ErrorMessage: OrphanedMessage,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fail orphaned streams: %w", err)
	}
	metrics.RecordJobsRecovered("orphaned", len(ids))
	if len(ids) > 0 {
		logger.FromContext(ctx).Warn("failed orphaned streams", "count", len(ids))
	}
	return len(ids), nil
}
