package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/jobs"
	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/abdul-hamid-achik/clip.cheap/internal/storage"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type testEnv struct {
	deps    *Dependencies
	store   *db.MemoryStore
	objects *storage.MemoryStorage
	runner  *processor.FakeRunner
	owner   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := db.NewMemoryStore()
	objects := storage.NewMemoryStorage()
	runner := &processor.FakeRunner{}
	return &testEnv{
		deps: &Dependencies{
			Store:   store,
			Storage: objects,
			Runner:  runner,
			WorkDir: t.TempDir(),
		},
		store:   store,
		objects: objects,
		runner:  runner,
		owner:   uuid.New(),
	}
}

// seed stores a job row in its initial status with normalized params.
func (e *testEnv) seed(t *testing.T, params jobs.Params) db.MediaJob {
	t.Helper()
	params.Normalize()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	row, err := e.store.CreateMediaJob(context.Background(), db.CreateMediaJobParams{
		OwnerID: pgtype.UUID{Bytes: e.owner, Valid: true},
		Kind:    params.Kind(),
		Status:  jobs.SpecFor(params.Kind()).Initial,
		Params:  raw,
	})
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return row
}

// upload puts a fake source video under the owner's uploads.
func (e *testEnv) upload(t *testing.T, name string) string {
	t.Helper()
	key := storage.UploadsPrefix(e.owner.String()) + name
	data := []byte("source " + name)
	if err := e.objects.Upload(context.Background(), key, bytes.NewReader(data), "video/mp4", int64(len(data))); err != nil {
		t.Fatalf("failed to upload source: %v", err)
	}
	return key
}

func (e *testEnv) reload(t *testing.T, row db.MediaJob) db.MediaJob {
	t.Helper()
	got, ok := e.store.Job(row.ID)
	if !ok {
		t.Fatalf("job %x not found", row.ID.Bytes)
	}
	return got
}

func queueJob(t *testing.T, kind db.JobKind, id uuid.UUID) *job.Job {
	t.Helper()
	j, err := job.New(jobs.SpecFor(kind).QueueType, MediaJobPayload{JobID: id})
	if err != nil {
		t.Fatalf("failed to create queue job: %v", err)
	}
	return j
}

func rowID(row db.MediaJob) uuid.UUID {
	return uuid.UUID(row.ID.Bytes)
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func int64p(v int64) *int64 { return &v }

type enqueued struct {
	kind db.JobKind
	id   uuid.UUID
}

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, kind db.JobKind, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, enqueued{kind: kind, id: id})
	return nil
}

func (m *mockEnqueuer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type mockBroker struct {
	jobs []*job.Job
	err  error
}

func (b *mockBroker) Enqueue(ctx context.Context, j *job.Job) error {
	if b.err != nil {
		return b.err
	}
	b.jobs = append(b.jobs, j)
	return nil
}

var errQueueDown = errors.New("redis: connection refused")
