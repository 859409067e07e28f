package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/google/uuid"
)

type enqueued struct {
	Kind  db.JobKind
	JobID uuid.UUID
}

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, kind db.JobKind, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, enqueued{Kind: kind, JobID: jobID})
	return nil
}

func (m *mockEnqueuer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

var errQueueDown = errors.New("queue down")
