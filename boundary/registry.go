package boundary

import (
	"sync"
	"sync/atomic"
)

// registry maps trampoline context ids to their registrations. The id is the
// only thing native code ever sees; Go pointers never cross the boundary.
//
// Ids come from a monotonically increasing counter and are never reused, so
// an id retained by native code after teardown can only miss.
type registry struct {
	mu      sync.RWMutex
	entries map[uintptr]*registration
	nextID  uintptr
	stale   atomic.Int64
}

var callbacks = newRegistry()

func newRegistry() *registry {
	return &registry{entries: make(map[uintptr]*registration), nextID: 1}
}

func (r *registry) add(reg *registration) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	reg.id = id
	r.entries[id] = reg
	return id
}

func (r *registry) lookup(id uintptr) *registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

func (r *registry) remove(id uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ActiveRegistrations returns the number of trampoline registrations that
// are currently installed, scoped and persistent alike.
func ActiveRegistrations() int {
	return callbacks.count()
}

// StaleInvocations returns how many times native code invoked a trampoline
// whose registration had already been torn down.
func StaleInvocations() int64 {
	return callbacks.stale.Load()
}
