package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/abdul-hamid-achik/clip.cheap/internal/processor"
	"github.com/google/uuid"
)

// handle is a running restream process.
type handle struct {
	owner   uuid.UUID
	proc    processor.Process
	cancel  context.CancelFunc
	targets string
	// finished closes once the job row reflects the exit.
	finished chan struct{}

	stopRequested atomic.Bool
}

// Registry maps stream job ids to their live processes. It lives in memory
// only; a restart loses every entry.
type Registry struct {
	mu    sync.RWMutex
	procs map[uuid.UUID]*handle
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[uuid.UUID]*handle)}
}

func (r *Registry) add(id uuid.UUID, h *handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[id] = h
}

func (r *Registry) get(id uuid.UUID) (*handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.procs[id]
	return h, ok
}

func (r *Registry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, id)
}

func (r *Registry) all() []*handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*handle, 0, len(r.procs))
	for _, h := range r.procs {
		out = append(out, h)
	}
	return out
}

// Running reports whether a process is registered for the job.
func (r *Registry) Running(id uuid.UUID) bool {
	_, ok := r.get(id)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.procs)
}
