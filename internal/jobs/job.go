package jobs

import (
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Job is the owner-facing snapshot of a media job. Params are never
// included since stream params carry ingest keys.
type Job struct {
	ID             uuid.UUID    `json:"jobId"`
	Kind           db.JobKind   `json:"kind"`
	Status         db.JobStatus `json:"status"`
	Progress       int          `json:"progress"`
	Platform       *string      `json:"platform,omitempty"`
	OutputLocation *string      `json:"outputLocation,omitempty"`
	Error          *string      `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
}

func FromRow(row db.MediaJob) *Job {
	return &Job{
		ID:             uuid.UUID(row.ID.Bytes),
		Kind:           row.Kind,
		Status:         row.Status,
		Progress:       int(row.Progress),
		Platform:       row.Platform,
		OutputLocation: row.OutputLocation,
		Error:          row.ErrorMessage,
		CreatedAt:      row.CreatedAt.Time,
		StartedAt:      timePtr(row.StartedAt),
		CompletedAt:    timePtr(row.CompletedAt),
	}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
