package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const mediaJobColumns = `id, owner_id, kind, status, params, platform, progress, output_location, error_message, created_at, started_at, completed_at, updated_at`

func scanMediaJob(row interface{ Scan(...interface{}) error }) (MediaJob, error) {
	var i MediaJob
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Kind,
		&i.Status,
		&i.Params,
		&i.Platform,
		&i.Progress,
		&i.OutputLocation,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.StartedAt,
		&i.CompletedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMediaJob = `-- name: CreateMediaJob :one
INSERT INTO media_jobs (owner_id, kind, status, params, platform)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + mediaJobColumns

type CreateMediaJobParams struct {
	OwnerID  pgtype.UUID `json:"owner_id"`
	Kind     JobKind     `json:"kind"`
	Status   JobStatus   `json:"status"`
	Params   []byte      `json:"params"`
	Platform *string     `json:"platform"`
}

func (q *Queries) CreateMediaJob(ctx context.Context, arg CreateMediaJobParams) (MediaJob, error) {
	row := q.db.QueryRow(ctx, createMediaJob,
		arg.OwnerID,
		arg.Kind,
		arg.Status,
		arg.Params,
		arg.Platform,
	)
	return scanMediaJob(row)
}

const getMediaJob = `-- name: GetMediaJob :one
SELECT ` + mediaJobColumns + `
FROM media_jobs
WHERE id = $1`

// GetMediaJob is not owner-scoped and must only be reachable from workers.
func (q *Queries) GetMediaJob(ctx context.Context, id pgtype.UUID) (MediaJob, error) {
	row := q.db.QueryRow(ctx, getMediaJob, id)
	return scanMediaJob(row)
}

const getMediaJobForOwner = `-- name: GetMediaJobForOwner :one
SELECT ` + mediaJobColumns + `
FROM media_jobs
WHERE id = $1 AND owner_id = $2`

type GetMediaJobForOwnerParams struct {
	ID      pgtype.UUID `json:"id"`
	OwnerID pgtype.UUID `json:"owner_id"`
}

func (q *Queries) GetMediaJobForOwner(ctx context.Context, arg GetMediaJobForOwnerParams) (MediaJob, error) {
	row := q.db.QueryRow(ctx, getMediaJobForOwner, arg.ID, arg.OwnerID)
	return scanMediaJob(row)
}

const listMediaJobsForOwner = `-- name: ListMediaJobsForOwner :many
SELECT ` + mediaJobColumns + `
FROM media_jobs
WHERE owner_id = $1 AND kind = $2
ORDER BY created_at DESC
LIMIT $3`

type ListMediaJobsForOwnerParams struct {
	OwnerID pgtype.UUID `json:"owner_id"`
	Kind    JobKind     `json:"kind"`
	Limit   int32       `json:"limit"`
}

func (q *Queries) ListMediaJobsForOwner(ctx context.Context, arg ListMediaJobsForOwnerParams) ([]MediaJob, error) {
	rows, err := q.db.Query(ctx, listMediaJobsForOwner, arg.OwnerID, arg.Kind, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MediaJob{}
	for rows.Next() {
		i, err := scanMediaJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countActiveMediaJobs = `-- name: CountActiveMediaJobs :one
SELECT COUNT(*)
FROM media_jobs
WHERE owner_id = $1
  AND kind = $2
  AND status IN ('PENDING', 'QUEUED', 'DOWNLOADING', 'PROCESSING', 'STARTING')`

type CountActiveMediaJobsParams struct {
	OwnerID pgtype.UUID `json:"owner_id"`
	Kind    JobKind     `json:"kind"`
}

func (q *Queries) CountActiveMediaJobs(ctx context.Context, arg CountActiveMediaJobsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveMediaJobs, arg.OwnerID, arg.Kind)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const lockOwnerJobs = `-- name: LockOwnerJobs :exec
SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`

// LockOwnerJobs holds a transaction-scoped advisory lock on key until the
// surrounding transaction ends. Outside a transaction it is released at once.
func (q *Queries) LockOwnerJobs(ctx context.Context, key string) error {
	_, err := q.db.Exec(ctx, lockOwnerJobs, key)
	return err
}

const claimMediaJob = `-- name: ClaimMediaJob :one
UPDATE media_jobs
SET status = $3, started_at = now(), updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + mediaJobColumns

type ClaimMediaJobParams struct {
	ID   pgtype.UUID `json:"id"`
	From JobStatus   `json:"from"`
	To   JobStatus   `json:"to"`
}

func (q *Queries) ClaimMediaJob(ctx context.Context, arg ClaimMediaJobParams) (MediaJob, error) {
	row := q.db.QueryRow(ctx, claimMediaJob, arg.ID, arg.From, arg.To)
	return scanMediaJob(row)
}

const updateMediaJobProgress = `-- name: UpdateMediaJobProgress :execrows
UPDATE media_jobs
SET progress = GREATEST(progress, $2), updated_at = now()
WHERE id = $1 AND status IN ('DOWNLOADING', 'PROCESSING', 'STARTING')`

type UpdateMediaJobProgressParams struct {
	ID       pgtype.UUID `json:"id"`
	Progress int32       `json:"progress"`
}

func (q *Queries) UpdateMediaJobProgress(ctx context.Context, arg UpdateMediaJobProgressParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateMediaJobProgress, arg.ID, arg.Progress)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const completeMediaJob = `-- name: CompleteMediaJob :one
UPDATE media_jobs
SET status = $3,
    output_location = $4,
    progress = 100,
    completed_at = now(),
    updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + mediaJobColumns

type CompleteMediaJobParams struct {
	ID             pgtype.UUID `json:"id"`
	From           JobStatus   `json:"from"`
	To             JobStatus   `json:"to"`
	OutputLocation string      `json:"output_location"`
}

func (q *Queries) CompleteMediaJob(ctx context.Context, arg CompleteMediaJobParams) (MediaJob, error) {
	row := q.db.QueryRow(ctx, completeMediaJob, arg.ID, arg.From, arg.To, arg.OutputLocation)
	return scanMediaJob(row)
}

const failMediaJob = `-- name: FailMediaJob :one
UPDATE media_jobs
SET status = 'FAILED',
    error_message = $2,
    completed_at = now(),
    updated_at = now()
WHERE id = $1 AND status IN ('DOWNLOADING', 'PROCESSING', 'STARTING')
RETURNING ` + mediaJobColumns

type FailMediaJobParams struct {
	ID           pgtype.UUID `json:"id"`
	ErrorMessage string      `json:"error_message"`
}

func (q *Queries) FailMediaJob(ctx context.Context, arg FailMediaJobParams) (MediaJob, error) {
	row := q.db.QueryRow(ctx, failMediaJob, arg.ID, arg.ErrorMessage)
	return scanMediaJob(row)
}

const listStalePendingJobs = `-- name: ListStalePendingJobs :many
SELECT ` + mediaJobColumns + `
FROM media_jobs
WHERE status IN ('PENDING', 'QUEUED')
  AND kind <> 'stream'
  AND created_at < $1
ORDER BY created_at
LIMIT $2`

type ListStalePendingJobsParams struct {
	Before pgtype.Timestamptz `json:"before"`
	Limit  int32              `json:"limit"`
}

func (q *Queries) ListStalePendingJobs(ctx context.Context, arg ListStalePendingJobsParams) ([]MediaJob, error) {
	rows, err := q.db.Query(ctx, listStalePendingJobs, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MediaJob{}
	for rows.Next() {
		i, err := scanMediaJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const failStaleRunningJobs = `-- name: FailStaleRunningJobs :many
UPDATE media_jobs
SET status = 'FAILED',
    error_message = $2,
    completed_at = now(),
    updated_at = now()
WHERE status IN ('DOWNLOADING', 'PROCESSING')
  AND started_at < $1
RETURNING id`

type FailStaleRunningJobsParams struct {
	Before       pgtype.Timestamptz `json:"before"`
	ErrorMessage string             `json:"error_message"`
}

func (q *Queries) FailStaleRunningJobs(ctx context.Context, arg FailStaleRunningJobsParams) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, failStaleRunningJobs, arg.Before, arg.ErrorMessage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []pgtype.UUID{}
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const failOrphanedStreams = `-- name: FailOrphanedStreams :many
UPDATE media_jobs
SET status = 'FAILED',
    error_message = $2,
    completed_at = now(),
    updated_at = now()
WHERE kind = 'stream'
  AND status = 'STARTING'
  AND started_at < $1
RETURNING id`

type FailOrphanedStreamsParams struct {
	Before       pgtype.Timestamptz `json:"before"`
	ErrorMessage string             `json:"error_message"`
}

func (q *Queries) FailOrphanedStreams(ctx context.Context, arg FailOrphanedStreamsParams) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, failOrphanedStreams, arg.Before, arg.ErrorMessage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []pgtype.UUID{}
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExpiredMediaJobs = `-- name: ListExpiredMediaJobs :many
SELECT ` + mediaJobColumns + `
FROM media_jobs
WHERE status IN ('COMPLETED', 'FAILED', 'ENDED')
  AND completed_at < $1
ORDER BY completed_at
LIMIT $2`

type ListExpiredMediaJobsParams struct {
	Before pgtype.Timestamptz `json:"before"`
	Limit  int32              `json:"limit"`
}

func (q *Queries) ListExpiredMediaJobs(ctx context.Context, arg ListExpiredMediaJobsParams) ([]MediaJob, error) {
	rows, err := q.db.Query(ctx, listExpiredMediaJobs, arg.Before, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MediaJob{}
	for rows.Next() {
		i, err := scanMediaJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteMediaJob = `-- name: DeleteMediaJob :exec
DELETE FROM media_jobs
WHERE id = $1 AND status IN ('COMPLETED', 'FAILED', 'ENDED')`

func (q *Queries) DeleteMediaJob(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, deleteMediaJob, id)
	return err
}
