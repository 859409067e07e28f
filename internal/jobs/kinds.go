package jobs

import (
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
)

// Spec describes one job kind: its lifecycle, admission ceiling and names.
type Spec struct {
	Kind    db.JobKind
	Initial db.JobStatus
	Running db.JobStatus
	Success db.JobStatus
	// Ceiling is the number of non-terminal jobs an owner may hold.
	Ceiling int64
	// Feature is the route segment, e.g. "downloads".
	Feature string
	// QueueType is the job-queue type name handlers register under.
	QueueType string
}

var specs = map[db.JobKind]Spec{
	db.JobKindDownload: {
		Kind:      db.JobKindDownload,
		Initial:   db.JobStatusPending,
		Running:   db.JobStatusDownloading,
		Success:   db.JobStatusCompleted,
		Ceiling:   5,
		Feature:   "downloads",
		QueueType: "media.download",
	},
	db.JobKindExport: {
		Kind:      db.JobKindExport,
		Initial:   db.JobStatusQueued,
		Running:   db.JobStatusProcessing,
		Success:   db.JobStatusCompleted,
		Ceiling:   3,
		Feature:   "exports",
		QueueType: "media.export",
	},
	db.JobKindLoop: {
		Kind:      db.JobKindLoop,
		Initial:   db.JobStatusPending,
		Running:   db.JobStatusProcessing,
		Success:   db.JobStatusCompleted,
		Ceiling:   3,
		Feature:   "loops",
		QueueType: "media.loop",
	},
	db.JobKindReaction: {
		Kind:      db.JobKindReaction,
		Initial:   db.JobStatusPending,
		Running:   db.JobStatusProcessing,
		Success:   db.JobStatusCompleted,
		Ceiling:   3,
		Feature:   "reactions",
		QueueType: "media.reaction",
	},
	db.JobKindStream: {
		Kind:      db.JobKindStream,
		Initial:   db.JobStatusPending,
		Running:   db.JobStatusStarting,
		Success:   db.JobStatusEnded,
		Ceiling:   1,
		Feature:   "streams",
		QueueType: "",
	},
}

// SpecFor panics on an unknown kind; kinds come from the enum.
func SpecFor(kind db.JobKind) Spec {
	s, ok := specs[kind]
	if !ok {
		panic("jobs: unknown kind " + string(kind))
	}
	return s
}

func KindForFeature(feature string) (db.JobKind, bool) {
	for kind, s := range specs {
		if s.Feature == feature {
			return kind, true
		}
	}
	return "", false
}

// QueuedKinds lists kinds processed by workers, in a stable order.
func QueuedKinds() []db.JobKind {
	var out []db.JobKind
	for _, kind := range db.AllJobKindValues() {
		if specs[kind].QueueType != "" {
			out = append(out, kind)
		}
	}
	return out
}

// Transitions lists the allowed edges per kind.
func Transitions(kind db.JobKind) map[db.JobStatus][]db.JobStatus {
	s, ok := specs[kind]
	if !ok {
		return nil
	}
	return map[db.JobStatus][]db.JobStatus{
		s.Initial: {s.Running},
		s.Running: {s.Success, db.JobStatusFailed},
	}
}

func CanTransition(kind db.JobKind, from, to db.JobStatus) bool {
	for _, next := range Transitions(kind)[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(status db.JobStatus) bool {
	switch status {
	case db.JobStatusCompleted, db.JobStatusFailed, db.JobStatusEnded:
		return true
	}
	return false
}
