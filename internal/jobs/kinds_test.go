package jobs

import (
	"testing"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		kind db.JobKind
		from db.JobStatus
		to   db.JobStatus
		want bool
	}{
		{db.JobKindDownload, db.JobStatusPending, db.JobStatusDownloading, true},
		{db.JobKindDownload, db.JobStatusDownloading, db.JobStatusCompleted, true},
		{db.JobKindDownload, db.JobStatusDownloading, db.JobStatusFailed, true},
		{db.JobKindDownload, db.JobStatusPending, db.JobStatusCompleted, false},
		{db.JobKindDownload, db.JobStatusPending, db.JobStatusProcessing, false},
		{db.JobKindExport, db.JobStatusQueued, db.JobStatusProcessing, true},
		{db.JobKindExport, db.JobStatusPending, db.JobStatusProcessing, false},
		{db.JobKindStream, db.JobStatusPending, db.JobStatusStarting, true},
		{db.JobKindStream, db.JobStatusStarting, db.JobStatusEnded, true},
		{db.JobKindStream, db.JobStatusStarting, db.JobStatusCompleted, false},
		{db.JobKindLoop, db.JobStatusCompleted, db.JobStatusFailed, false},
		{db.JobKindReaction, db.JobStatusFailed, db.JobStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.kind, tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, kind := range db.AllJobKindValues() {
		for _, status := range []db.JobStatus{db.JobStatusCompleted, db.JobStatusFailed, db.JobStatusEnded} {
			if edges := Transitions(kind)[status]; len(edges) != 0 {
				t.Errorf("%s: terminal %s has edges %v", kind, status, edges)
			}
			if !IsTerminal(status) {
				t.Errorf("IsTerminal(%s) = false", status)
			}
		}
	}
}

func TestKindForFeature(t *testing.T) {
	for _, kind := range db.AllJobKindValues() {
		got, ok := KindForFeature(SpecFor(kind).Feature)
		if !ok || got != kind {
			t.Errorf("KindForFeature(%q) = %q, %v", SpecFor(kind).Feature, got, ok)
		}
	}
	if _, ok := KindForFeature("uploads"); ok {
		t.Error("unknown feature should not resolve")
	}
}

func TestQueuedKinds(t *testing.T) {
	kinds := QueuedKinds()
	if len(kinds) != 4 {
		t.Fatalf("QueuedKinds() = %v, want 4 kinds", kinds)
	}
	for _, k := range kinds {
		if k == db.JobKindStream {
			t.Error("stream jobs are not queued")
		}
	}
}
