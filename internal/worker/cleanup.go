package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CleanupDependencies struct {
	Storage   storage.Storage
	Queries   db.Querier
	Retention time.Duration
	Now       func() time.Time
}

type CleanupStats struct {
	JobsDeleted          int
	ObjectsDeleted       int
	StorageDeleteErrors  int
	DatabaseDeleteErrors int
}

// RunCleanup deletes terminal jobs older than the retention period together
// with their stored artifacts.
func RunCleanup(ctx context.Context, deps *CleanupDependencies) (*CleanupStats, error) {
	log := logger.FromContext(ctx)
	log.Info("starting cleanup job")
	start := time.Now()

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	before := pgTime(now().Add(-deps.Retention))
	stats := &CleanupStats{}

	const batchSize = int32(100)
	for {
		rows, err := deps.Queries.ListExpiredMediaJobs(ctx, db.ListExpiredMediaJobsParams{
			Before: before,
			Limit:  batchSize,
		})
		if err != nil {
			return stats, fmt.Errorf("failed to list expired jobs: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		deleted := 0
		for _, row := range rows {
			if row.Kind != db.JobKindStream && row.OutputLocation != nil && *row.OutputLocation != "" {
				err := deps.Storage.Delete(ctx, *row.OutputLocation)
				switch {
				case err == nil:
					stats.ObjectsDeleted++
				case errors.Is(err, storage.ErrNotFound):
				default:
					log.Warn("failed to delete job output from storage",
						"job_id", uuid.UUID(row.ID.Bytes).String(),
						"storage_key", *row.OutputLocation,
						"error", err,
					)
					stats.StorageDeleteErrors++
					continue
				}
			}

			if err := deps.Queries.DeleteMediaJob(ctx, row.ID); err != nil {
				log.Warn("failed to delete job row",
					"job_id", uuid.UUID(row.ID.Bytes).String(),
					"error", err,
				)
				stats.DatabaseDeleteErrors++
				continue
			}
			deleted++
		}
		stats.JobsDeleted += deleted

		if deleted == 0 || int32(len(rows)) < batchSize {
			break
		}
	}

	metrics.RecordJobsRecovered("purged", stats.JobsDeleted)
	log.Info("cleanup job completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"jobs_deleted", stats.JobsDeleted,
		"objects_deleted", stats.ObjectsDeleted,
		"storage_errors", stats.StorageDeleteErrors,
		"database_errors", stats.DatabaseDeleteErrors,
	)

	return stats, nil
}

func pgTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
