package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/billing"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type testEnv struct {
	svc     *Service
	store   *db.MemoryStore
	objects *storage.MemoryStorage
	queue   *mockEnqueuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := db.NewMemoryStore()
	objects := storage.NewMemoryStorage()
	queue := &mockEnqueuer{}
	quota := billing.NewService(nil, store, "http://localhost")
	return &testEnv{
		svc:     NewService(store, objects, queue, quota),
		store:   store,
		objects: objects,
		queue:   queue,
	}
}

func downloadParams() *DownloadParams {
	return &DownloadParams{URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}
}

func exportParams(owner uuid.UUID) *ExportParams {
	return &ExportParams{Clips: []Clip{{SourceKey: upload(owner, "a.mp4"), EndMs: int64p(2000)}}}
}

// failJob moves a job through its running status to FAILED.
func failJob(t *testing.T, env *testEnv, job *Job) {
	t.Helper()
	ctx := context.Background()
	spec := SpecFor(job.Kind)
	if _, err := env.store.ClaimMediaJob(ctx, db.ClaimMediaJobParams{ID: pgUUID(job.ID), From: spec.Initial, To: spec.Running}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := env.store.FailMediaJob(ctx, db.FailMediaJobParams{ID: pgUUID(job.ID), ErrorMessage: "boom"}); err != nil {
		t.Fatalf("fail: %v", err)
	}
}

func TestCreate_Download(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()

	job, err := env.svc.Create(context.Background(), owner, downloadParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if job.Status != db.JobStatusPending {
		t.Errorf("Status = %s, want PENDING", job.Status)
	}
	if job.Platform == nil || *job.Platform != "youtube" {
		t.Errorf("Platform = %v, want youtube", job.Platform)
	}
	if env.queue.count() != 1 || env.queue.jobs[0].JobID != job.ID {
		t.Errorf("enqueued = %+v, want the new job", env.queue.jobs)
	}
}

func TestCreate_DownloadCeiling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < 5; i++ {
		if _, err := env.svc.Create(ctx, owner, downloadParams()); err != nil {
			t.Fatalf("Create() #%d error = %v", i+1, err)
		}
	}

	_, err := env.svc.Create(ctx, owner, downloadParams())
	if apperror.Code(err) != apperror.CodeRateLimited {
		t.Fatalf("sixth Create() error = %v, want rate_limited", err)
	}
	if got := env.store.JobCount(); got != 5 {
		t.Errorf("JobCount() = %d, want 5", got)
	}
	if env.queue.count() != 5 {
		t.Errorf("enqueued %d jobs, want 5", env.queue.count())
	}

	// Another owner is unaffected.
	if _, err := env.svc.Create(ctx, uuid.New(), downloadParams()); err != nil {
		t.Errorf("other owner Create() error = %v", err)
	}
}

func TestCreate_CeilingFreesOnTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	var first *Job
	for i := 0; i < 3; i++ {
		job, err := env.svc.Create(ctx, owner, &LoopParams{SourceKey: upload(owner, "a.mp4")})
		if err != nil {
			t.Fatal(err)
		}
		if first == nil {
			first = job
		}
	}

	failJob(t, env, first)

	if _, err := env.svc.Create(ctx, owner, &LoopParams{SourceKey: upload(owner, "a.mp4")}); err != nil {
		t.Errorf("Create() after a job failed error = %v", err)
	}
}

func TestCreate_ExportZeroClips(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), uuid.New(), &ExportParams{})
	if apperror.Code(err) != apperror.CodeValidation {
		t.Fatalf("Create() error = %v, want validation_error", err)
	}
	if env.store.JobCount() != 0 {
		t.Error("no job row should be created")
	}
	if env.queue.count() != 0 {
		t.Error("nothing should be enqueued")
	}
}

func TestCreate_ExportQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < billing.FreeExportsLimit; i++ {
		job, err := env.svc.Create(ctx, owner, exportParams(owner))
		if err != nil {
			t.Fatalf("Create() #%d error = %v", i+1, err)
		}
		if job.Status != db.JobStatusQueued {
			t.Errorf("Status = %s, want QUEUED", job.Status)
		}
		// Free the ceiling so only the quota limits us.
		failJob(t, env, job)
	}

	_, err := env.svc.Create(ctx, owner, exportParams(owner))
	if !errors.Is(err, apperror.ErrQuotaExceeded) {
		t.Fatalf("Create() error = %v, want quota exceeded", err)
	}
	if apperror.StatusCode(err) != 403 {
		t.Errorf("status = %d, want 403", apperror.StatusCode(err))
	}
	if env.store.JobCount() != billing.FreeExportsLimit {
		t.Errorf("JobCount() = %d, want %d", env.store.JobCount(), billing.FreeExportsLimit)
	}
}

func TestCreate_ExportCeilingDoesNotChargeQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	quota := billing.NewService(nil, env.store, "")

	if _, err := quota.Upgrade(ctx, owner, db.SubscriptionTierCreator, env.store.Now().Add(billing.PeriodLength)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.svc.Create(ctx, owner, exportParams(owner)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.svc.Create(ctx, owner, exportParams(owner)); apperror.Code(err) != apperror.CodeRateLimited {
		t.Fatalf("fourth Create() error = %v, want rate_limited", err)
	}

	info, err := quota.GetSubscription(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if info.ExportsUsed != 3 {
		t.Errorf("ExportsUsed = %d, want 3", info.ExportsUsed)
	}
}

func TestCreate_EnqueueFailureKeepsRow(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = errQueueDown

	job, err := env.svc.Create(context.Background(), uuid.New(), downloadParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	row, ok := env.store.Job(pgUUID(job.ID))
	if !ok || row.Status != db.JobStatusPending {
		t.Errorf("row = %+v, want PENDING", row)
	}
}

func TestCreate_RejectsStream(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Create(context.Background(), uuid.New(), &StreamParams{})
	if apperror.StatusCode(err) != 400 {
		t.Errorf("error = %v, want 400", err)
	}
}

func TestCreateClaimed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	p := func() *StreamParams {
		return &StreamParams{
			SourceURL: "rtmp://ingest.local/live/in",
			Targets:   []StreamTarget{{URL: "rtmp://a.rtmp.youtube.com/live2", Key: "secret"}},
		}
	}

	job, err := env.svc.CreateClaimed(ctx, owner, p())
	if err != nil {
		t.Fatalf("CreateClaimed() error = %v", err)
	}
	if job.Status != db.JobStatusStarting || job.StartedAt == nil {
		t.Errorf("job = %+v, want STARTING with startedAt", job)
	}
	if env.queue.count() != 0 {
		t.Error("claimed jobs are not enqueued")
	}

	if _, err := env.svc.CreateClaimed(ctx, owner, p()); apperror.Code(err) != apperror.CodeRateLimited {
		t.Errorf("second stream error = %v, want rate_limited", err)
	}
}

func TestGet_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	job, err := env.svc.Create(ctx, owner, downloadParams())
	if err != nil {
		t.Fatal(err)
	}

	got, err := env.svc.Get(ctx, owner, db.JobKindDownload, job.ID)
	if err != nil || got.ID != job.ID {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	_, err = env.svc.Get(ctx, uuid.New(), db.JobKindDownload, job.ID)
	if apperror.StatusCode(err) != 404 {
		t.Errorf("foreign Get() error = %v, want 404", err)
	}

	_, err = env.svc.Get(ctx, owner, db.JobKindExport, job.ID)
	if apperror.StatusCode(err) != 404 {
		t.Errorf("wrong-kind Get() error = %v, want 404", err)
	}

	_, err = env.svc.Get(ctx, owner, db.JobKindDownload, uuid.New())
	if apperror.StatusCode(err) != 404 {
		t.Errorf("missing Get() error = %v, want 404", err)
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		job, err := env.svc.Create(ctx, owner, downloadParams())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}
	if _, err := env.svc.Create(ctx, uuid.New(), downloadParams()); err != nil {
		t.Fatal(err)
	}

	got, err := env.svc.List(ctx, owner, db.JobKindDownload, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d jobs, want 3", len(got))
	}
	if got[0].ID != ids[2] || got[2].ID != ids[0] {
		t.Error("List() should be newest first")
	}

	got, err = env.svc.List(ctx, owner, db.JobKindDownload, 1)
	if err != nil || len(got) != 1 {
		t.Errorf("List(limit=1) = %d jobs, %v", len(got), err)
	}
}

func TestOpenOutput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	job, err := env.svc.Create(ctx, owner, &LoopParams{SourceKey: upload(owner, "a.mp4")})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.svc.OpenOutput(ctx, owner, db.JobKindLoop, job.ID)
	if !errors.Is(err, apperror.ErrJobNotReady) {
		t.Fatalf("OpenOutput() before completion error = %v, want job_not_ready", err)
	}

	key := storage.OutputKey(owner.String(), job.ID.String(), "loop.mp4")
	id := pgUUID(job.ID)
	if _, err := env.store.ClaimMediaJob(ctx, db.ClaimMediaJobParams{ID: id, From: db.JobStatusPending, To: db.JobStatusProcessing}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.store.CompleteMediaJob(ctx, db.CompleteMediaJobParams{ID: id, From: db.JobStatusProcessing, To: db.JobStatusCompleted, OutputLocation: key}); err != nil {
		t.Fatal(err)
	}

	_, err = env.svc.OpenOutput(ctx, owner, db.JobKindLoop, job.ID)
	if apperror.StatusCode(err) != 404 {
		t.Fatalf("OpenOutput() with missing object error = %v, want 404", err)
	}

	data := []byte("video-bytes")
	if err := env.objects.Upload(ctx, key, bytes.NewReader(data), "video/mp4", int64(len(data))); err != nil {
		t.Fatal(err)
	}

	out, err := env.svc.OpenOutput(ctx, owner, db.JobKindLoop, job.ID)
	if err != nil {
		t.Fatalf("OpenOutput() error = %v", err)
	}
	defer func() { _ = out.Body.Close() }()

	got, _ := io.ReadAll(out.Body)
	if !bytes.Equal(got, data) {
		t.Errorf("body = %q, want %q", got, data)
	}
	if out.ContentType != "video/mp4" {
		t.Errorf("ContentType = %q", out.ContentType)
	}
	if out.Filename != "loop-"+job.ID.String()[:8]+".mp4" {
		t.Errorf("Filename = %q", out.Filename)
	}

	_, err = env.svc.OpenOutput(ctx, uuid.New(), db.JobKindLoop, job.ID)
	if apperror.StatusCode(err) != 404 {
		t.Errorf("foreign OpenOutput() error = %v, want 404", err)
	}
}

func TestFromRow_UnsetTimestamps(t *testing.T) {
	row := db.MediaJob{
		ID:     pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Kind:   db.JobKindStream,
		Status: db.JobStatusStarting,
		Params: []byte(`{"targets":[{"key":"secret"}]}`),
	}
	job := FromRow(row)
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Error("unset timestamps should be nil")
	}
}
