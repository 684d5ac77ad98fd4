package supervisor

import "sync"

// Registry maps model name to WorkerHandle in launch order. It is written by
// the Supervisor during startup and shutdown and read by request handlers.
// At most one handle exists per name.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	handles map[string]WorkerHandle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]WorkerHandle)}
}

// Put records a handle. A second handle for the same name is rejected.
func (r *Registry) Put(h WorkerHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h.Name]; ok {
		return duplicateHandleError{model: h.Name}
	}
	r.handles[h.Name] = h
	r.order = append(r.order, h.Name)
	return nil
}

// Lookup returns the handle for name.
func (r *Registry) Lookup(name string) (WorkerHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Port returns the worker port for name. A model with no handle is not routable.
func (r *Registry) Port(name string) (int, bool) {
	h, ok := r.Lookup(name)
	return h.Port, ok
}

// Names returns registered model names in launch order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Drain removes and returns every handle in launch order.
func (r *Registry) Drain() []WorkerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WorkerHandle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handles[name])
	}
	r.order = nil
	r.handles = make(map[string]WorkerHandle)
	return out
}
