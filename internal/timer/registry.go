// Package timer provides a process-wide registry of pending delayed
// callbacks. It holds scheduling handles only; durable state lives in the
// repositories and the registry is rebuilt, never restored, after a restart.
package timer

import (
	"sync"
	"time"
)

// Registry maps an identifier to at most one pending callback. Scheduling
// under an identifier that already has a pending callback replaces it.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms fn to run after delay. Any pending callback for id is
// cancelled first. The entry is removed before fn runs, so fn may
// re-schedule under the same id without racing its own registration.
// A cancelled or replaced handle never runs its callback.
func (r *Registry) Schedule(id string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.timers[id]; ok {
		existing.Stop()
		delete(r.timers, id)
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		current, ok := r.timers[id]
		if !ok || current != t {
			// Cancelled or replaced between firing and acquiring the lock.
			r.mu.Unlock()
			return
		}
		delete(r.timers, id)
		r.mu.Unlock()

		fn()
	})
	r.timers[id] = t
}

// Cancel stops and removes the pending callback for id, if any.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(r.timers, id)
	return true
}

// Active reports whether id has a pending callback.
func (r *Registry) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.timers[id]
	return ok
}

// Len returns the number of pending callbacks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.timers)
}
