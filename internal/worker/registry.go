package worker

import (
	"sync"

	"github.com/atlas-agent/atlas/internal/observability"
)

// Registry is a name-keyed, thread-safe store of Workers. Reads (routing,
// lookup) are frequent and take a shared lock; writes (Register/Unregister)
// are rare.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Worker
	logger  *observability.Logger
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]Worker)}
}

// SetLogger installs the structured logger Register reports replacements
// through. A nil logger (the default) disables logging.
func (r *Registry) SetLogger(l *observability.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// Register adds a worker under its Name(). Re-registering an existing name
// replaces it and emits a warning; in-flight calls already holding a
// reference to the old Worker are unaffected.
func (r *Registry) Register(w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[w.Name()]; exists && r.logger != nil {
		r.logger.Warn("replacing already-registered worker", "worker", w.Name())
	}
	r.workers[w.Name()] = w
}

// Unregister removes a worker by name. It is a no-op if the name is absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, name)
}

// Get looks up a worker by name. Returns (nil, false) if absent.
func (r *Registry) Get(name string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return w, ok
}

// List returns a snapshot of all registered worker names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.workers))
	for name := range r.workers {
		out = append(out, name)
	}
	return out
}

// Snapshot returns a copy of the name→Worker mapping for callers (like the
// router) that need a consistent point-in-time view without holding the
// registry lock while they work.
func (r *Registry) Snapshot() map[string]Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Worker, len(r.workers))
	for name, w := range r.workers {
		out[name] = w
	}
	return out
}
