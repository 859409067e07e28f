package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor/video"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/abdul-hamid-achik/clip.cheap/internal/tracing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
)

// MaxSourceBytes caps remote clip downloads.
const MaxSourceBytes = 2 << 30

// JobContext holds common data during job execution.
type JobContext struct {
	Context context.Context
	Log     *slog.Logger
	JobID   uuid.UUID
	OwnerID uuid.UUID
	Kind    db.JobKind
	WorkDir string
	Deps    *Dependencies
	Report  *Reporter
}

// Path returns name inside the job's workdir.
func (jc *JobContext) Path(name string) string {
	return filepath.Join(jc.WorkDir, filepath.Base(name))
}

func (jc *JobContext) Progress(pct int) {
	jc.Report.Progress(jc.Context, pct)
}

// Run executes one tool invocation as a traced, timed stage.
func (jc *JobContext) Run(stage string, tool processor.Tool, args []string) (*processor.RunResult, error) {
	ctx, span := tracing.StartSpan(jc.Context, "stage."+stage)
	defer span.End()
	span.SetAttributes(attribute.String("tool", string(tool)))

	start := time.Now()
	res, err := jc.Deps.Runner.Run(ctx, tool, args)
	metrics.RecordJobStage(jobs.SpecFor(jc.Kind).QueueType, stage, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s: %w", stage, err)
	}
	return res, nil
}

func (jc *JobContext) Probe(path string) (*video.Metadata, error) {
	res, err := jc.Run("probe", processor.ToolFFprobe, video.ProbeArgs(path))
	if err != nil {
		return nil, err
	}
	return video.ParseProbe(res.Stdout)
}

// Fetch copies a stored object into the workdir.
func (jc *JobContext) Fetch(ctx context.Context, key, name string) (string, error) {
	dst := jc.Path(name)
	if err := storage.DownloadFile(ctx, jc.Deps.Storage, key, dst); err != nil {
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}
	return dst, nil
}

// FetchURL downloads a remote source into the workdir.
func (jc *JobContext) FetchURL(ctx context.Context, rawURL, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	resp, err := jc.Deps.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	dst := jc.Path(name)
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, MaxSourceBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if n > MaxSourceBytes {
		return "", fmt.Errorf("fetch %s: source exceeds %d bytes", rawURL, int64(MaxSourceBytes))
	}
	return dst, nil
}

// Reporter writes coarse progress milestones. Progress writes never fail the
// job.
type Reporter struct {
	store db.Querier
	id    pgtype.UUID
	log   *slog.Logger
}

func NewReporter(store db.Querier, id pgtype.UUID, log *slog.Logger) *Reporter {
	return &Reporter{store: store, id: id, log: log}
}

func (r *Reporter) Progress(ctx context.Context, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	n, err := r.store.UpdateMediaJobProgress(ctx, db.UpdateMediaJobProgressParams{
		ID:       r.id,
		Progress: int32(pct),
	})
	if err != nil {
		r.log.Warn("failed to update progress", "progress", pct, "error", err)
		return
	}
	if n == 0 {
		r.log.Debug("progress ignored, job no longer running", "progress", pct)
	}
}
