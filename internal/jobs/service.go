package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/billing"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/video"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/ytdlp"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Enqueuer hands a committed job to the worker queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind db.JobKind, jobID uuid.UUID) error
}

// QuotaGate charges an export against the owner's subscription inside the
// admission transaction.
type QuotaGate interface {
	UseExportTx(ctx context.Context, q db.Querier, ownerID uuid.UUID) (billing.Usage, error)
}

type Service struct {
	store    db.Store
	storage  storage.Storage
	enqueuer Enqueuer
	quota    QuotaGate
}

func NewService(store db.Store, objects storage.Storage, enqueuer Enqueuer, quota QuotaGate) *Service {
	return &Service{
		store:    store,
		storage:  objects,
		enqueuer: enqueuer,
		quota:    quota,
	}
}

// Create admits a worker-processed job and enqueues it.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, p Params) (*Job, error) {
	if p.Kind() == db.JobKindStream {
		return nil, apperror.Validation("streams are started through the streams endpoint")
	}

	row, err := s.admit(ctx, ownerID, p, false)
	if err != nil {
		return nil, err
	}

	jobID := uuid.UUID(row.ID.Bytes)
	if s.enqueuer != nil {
		if err := s.enqueuer.Enqueue(ctx, row.Kind, jobID); err != nil {
			// The row stays in its initial status; recovery re-enqueues it.
			logger.FromContext(ctx).Error("failed to enqueue job",
				"job_id", jobID.String(),
				"kind", row.Kind,
				"error", err,
			)
		}
	}

	return FromRow(row), nil
}

// CreateClaimed admits a job and moves it straight to its running status in
// the same transaction. It is used for work the caller runs itself.
func (s *Service) CreateClaimed(ctx context.Context, ownerID uuid.UUID, p Params) (*Job, error) {
	row, err := s.admit(ctx, ownerID, p, true)
	if err != nil {
		return nil, err
	}
	return FromRow(row), nil
}

func (s *Service) admit(ctx context.Context, ownerID uuid.UUID, p Params, claim bool) (db.MediaJob, error) {
	kind := p.Kind()
	spec := SpecFor(kind)

	p.Normalize()
	if err := p.Validate(ownerID); err != nil {
		metrics.RecordJobRejected(string(kind), "validation")
		return db.MediaJob{}, err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return db.MediaJob{}, fmt.Errorf("failed to encode params: %w", err)
	}

	var platform *string
	if dp, ok := p.(*DownloadParams); ok {
		name := string(ytdlp.DetectPlatform(dp.URL))
		platform = &name
	}

	var row db.MediaJob
	err = s.store.ExecTx(ctx, func(q db.Querier) error {
		if err := q.LockOwnerJobs(ctx, ownerID.String()+":"+string(kind)); err != nil {
			return fmt.Errorf("failed to lock owner jobs: %w", err)
		}

		active, err := q.CountActiveMediaJobs(ctx, db.CountActiveMediaJobsParams{
			OwnerID: pgUUID(ownerID),
			Kind:    kind,
		})
		if err != nil {
			return fmt.Errorf("failed to count active jobs: %w", err)
		}
		if active >= spec.Ceiling {
			metrics.RecordJobRejected(string(kind), "ceiling")
			return apperror.RateLimited(fmt.Sprintf("You can have at most %d active %s jobs", spec.Ceiling, kind))
		}

		if kind == db.JobKindExport && s.quota != nil {
			usage, err := s.quota.UseExportTx(ctx, q, ownerID)
			if err != nil {
				return err
			}
			if !usage.Allowed {
				metrics.RecordJobRejected(string(kind), "quota")
				return apperror.ErrQuotaExceeded
			}
		}

		row, err = q.CreateMediaJob(ctx, db.CreateMediaJobParams{
			OwnerID:  pgUUID(ownerID),
			Kind:     kind,
			Status:   spec.Initial,
			Params:   raw,
			Platform: platform,
		})
		if err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}

		if claim {
			row, err = q.ClaimMediaJob(ctx, db.ClaimMediaJobParams{
				ID:   row.ID,
				From: spec.Initial,
				To:   spec.Running,
			})
			if err != nil {
				return fmt.Errorf("failed to claim job: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return db.MediaJob{}, err
	}

	metrics.RecordJobCreated(string(kind))
	logger.FromContext(ctx).Info("job created",
		"job_id", uuid.UUID(row.ID.Bytes).String(),
		"kind", kind,
		"status", row.Status,
	)
	return row, nil
}

// Get returns the owner's job. A job of another kind is reported as missing.
func (s *Service) Get(ctx context.Context, ownerID uuid.UUID, kind db.JobKind, jobID uuid.UUID) (*Job, error) {
	row, err := s.getRow(ctx, ownerID, kind, jobID)
	if err != nil {
		return nil, err
	}
	return FromRow(row), nil
}

func (s *Service) getRow(ctx context.Context, ownerID uuid.UUID, kind db.JobKind, jobID uuid.UUID) (db.MediaJob, error) {
	row, err := s.store.GetMediaJobForOwner(ctx, db.GetMediaJobForOwnerParams{
		ID:      pgUUID(jobID),
		OwnerID: pgUUID(ownerID),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return db.MediaJob{}, apperror.NotFound("job")
	}
	if err != nil {
		return db.MediaJob{}, fmt.Errorf("failed to get job: %w", err)
	}
	if row.Kind != kind {
		return db.MediaJob{}, apperror.NotFound("job")
	}
	return row, nil
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, kind db.JobKind, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.store.ListMediaJobsForOwner(ctx, db.ListMediaJobsForOwnerParams{
		OwnerID: pgUUID(ownerID),
		Kind:    kind,
		Limit:   int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]*Job, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRow(row))
	}
	return out, nil
}

// Output is an open artifact. The caller closes Body.
type Output struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
}

func (s *Service) OpenOutput(ctx context.Context, ownerID uuid.UUID, kind db.JobKind, jobID uuid.UUID) (*Output, error) {
	if kind == db.JobKindStream {
		return nil, apperror.NotFound("output")
	}

	row, err := s.getRow(ctx, ownerID, kind, jobID)
	if err != nil {
		return nil, err
	}
	if row.Status != SpecFor(kind).Success {
		return nil, apperror.ErrJobNotReady
	}
	if row.OutputLocation == nil || *row.OutputLocation == "" {
		return nil, apperror.NotFound("output")
	}

	key := *row.OutputLocation
	body, err := s.storage.Download(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.NotFound("output")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open output: %w", err)
	}

	ext := path.Ext(key)
	return &Output{
		Body:        body,
		ContentType: video.ContentType(ext),
		Filename:    fmt.Sprintf("%s-%s%s", kind, jobID.String()[:8], ext),
	}, nil
}
