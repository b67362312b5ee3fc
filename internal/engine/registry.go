package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry keeps opened ArchiveHandles addressable by an opaque id across
// the request boundary (spec.md §6's POST /v0/archive returning an id later
// requests reference), since an *ArchiveHandle itself is never serialized.
// Grounded in the teacher's in-memory job/session maps (internal/usenet's
// connection tracking), generalized to a plain mutex-guarded map since this
// engine has no need for the teacher's DB-backed persistence.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	handle   *ArchiveHandle
	openedAt time.Time
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Put stores handle and returns the id future requests will address it by.
func (r *Registry) Put(handle *ArchiveHandle) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = &registryEntry{handle: handle, openedAt: time.Now()}
	r.mu.Unlock()
	return id
}

// Get looks up the handle stored under id.
func (r *Registry) Get(id string) (*ArchiveHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Delete removes id's handle, if present.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Sweep evicts every handle opened more than maxAge ago. Intended to run on
// a periodic schedule (cmd/remotezipd wires this to a madflojo/tasks job)
// so a server left running doesn't grow its registry unbounded.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.entries {
		if e.openedAt.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live handles, for health/diagnostics endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
