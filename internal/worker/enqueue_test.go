package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/google/uuid"
)

func TestQueueEnqueuer_Enqueue(t *testing.T) {
	b := &mockBroker{}
	id := uuid.New()

	if err := NewQueueEnqueuer(b).Enqueue(context.Background(), db.JobKindExport, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.jobs) != 1 {
		t.Fatalf("broker jobs = %d, want 1", len(b.jobs))
	}

	var payload MediaJobPayload
	if err := b.jobs[0].UnmarshalPayload(&payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.JobID != id {
		t.Errorf("payload job id = %s, want %s", payload.JobID, id)
	}
}

func TestQueueEnqueuer_StreamsAreNotQueued(t *testing.T) {
	b := &mockBroker{}
	if err := NewQueueEnqueuer(b).Enqueue(context.Background(), db.JobKindStream, uuid.New()); err == nil {
		t.Fatal("expected error")
	}
	if len(b.jobs) != 0 {
		t.Errorf("broker jobs = %d, want 0", len(b.jobs))
	}
}

func TestQueueEnqueuer_BrokerError(t *testing.T) {
	b := &mockBroker{err: errQueueDown}
	err := NewQueueEnqueuer(b).Enqueue(context.Background(), db.JobKindDownload, uuid.New())
	if !errors.Is(err, errQueueDown) {
		t.Errorf("err = %v, want wrapped broker error", err)
	}
}
