// Package progress tracks in-flight extraction jobs in memory. State is
// ephemeral: a process restart loses all in-flight progress, matching the
// non-resumable external tooling underneath.
package progress

import (
	"sync"

	"audiovault/internal/media"
)

// unknownMessage is served for identifiers that were never admitted.
const unknownMessage = "No status found"

// Observer receives every status transition. Used to feed metrics and logs
// without coupling the tracker to them.
type Observer func(id string, status media.Status)

// Option configures a Tracker.
type Option func(*Tracker)

// WithObserver registers an observer invoked synchronously on each Set.
func WithObserver(fn Observer) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.observers = append(t.observers, fn)
		}
	}
}

// Tracker is a concurrency-safe map from content identifier to the current
// job state. Each key is written only by its owning job execution; reads come
// from status polls and the admission check.
type Tracker struct {
	mu        sync.RWMutex
	entries   map[string]media.Progress
	observers []Observer
}

// NewTracker constructs an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{entries: make(map[string]media.Progress)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set overwrites the entry for id.
func (t *Tracker) Set(id string, status media.Status, message string) {
	t.mu.Lock()
	t.entries[id] = media.Progress{Status: status, Message: message}
	t.mu.Unlock()
	for _, fn := range t.observers {
		fn(id, status)
	}
}

// Get returns the entry for id. Never fails: unknown identifiers yield the
// unknown status with a fixed message.
func (t *Tracker) Get(id string) media.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.entries[id]; ok {
		return p
	}
	return media.Progress{Status: media.StatusUnknown, Message: unknownMessage}
}

// InFlight reports whether id has a non-terminal entry. Terminal entries
// (completed, error) do not count: a failed job may be re-requested.
func (t *Tracker) InFlight(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[id]
	return ok && !p.Status.Terminal()
}

// Clear removes the entry for id if present.
func (t *Tracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}
