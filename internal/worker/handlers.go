package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
)

type Dependencies struct {
	Store   db.Store
	Storage storage.Storage
	Runner  processor.Runner
	// WorkDir is the parent of per-job temp directories. Empty means os.TempDir.
	WorkDir string
	// HTTPClient fetches remote export sources.
	HTTPClient *http.Client
}

func (d *Dependencies) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Minute}
}

// Handlers returns the queue handler for every worker-processed kind, keyed
// by queue job type.
func Handlers(deps *Dependencies) map[string]func(context.Context, *job.Job) error {
	return map[string]func(context.Context, *job.Job) error{
		jobs.SpecFor(db.JobKindDownload).QueueType: DownloadHandler(deps),
		jobs.SpecFor(db.JobKindExport).QueueType:   ExportHandler(deps),
		jobs.SpecFor(db.JobKindLoop).QueueType:     LoopHandler(deps),
		jobs.SpecFor(db.JobKindReaction).QueueType: ReactionHandler(deps),
	}
}

func DownloadHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return NewMediaJobBuilder(deps, MediaJobConfig[*jobs.DownloadParams]{
		Kind: db.JobKindDownload,
		Run:  runDownload,
	}).Build()
}

func ExportHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return NewMediaJobBuilder(deps, MediaJobConfig[*jobs.ExportParams]{
		Kind: db.JobKindExport,
		Run:  runExport,
	}).Build()
}

func LoopHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return NewMediaJobBuilder(deps, MediaJobConfig[*jobs.LoopParams]{
		Kind: db.JobKindLoop,
		Run:  runLoop,
	}).Build()
}

func ReactionHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return NewMediaJobBuilder(deps, MediaJobConfig[*jobs.ReactionParams]{
		Kind: db.JobKindReaction,
		Run:  runReaction,
	}).Build()
}
