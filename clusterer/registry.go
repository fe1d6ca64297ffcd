package clusterer

import "sync"

// Registry keeps at most one controller per viewport. Viewports are used as
// map keys, so their dynamic type must be comparable (pointer types are).
type Registry struct {
	mu     sync.Mutex
	active map[Viewport]*Controller
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{active: make(map[Viewport]*Controller)}
}

var defaultRegistry = NewRegistry()

// Install creates a controller for vp on the default registry
func Install(vp Viewport, opts Options) (*Controller, error) {
	return defaultRegistry.Install(vp, opts)
}

// Install creates a controller for vp, destroying the one previously
// installed on it.
func (r *Registry) Install(vp Viewport, opts Options) (*Controller, error) {
	if vp == nil {
		return nil, ErrUnavailable
	}

	r.mu.Lock()
	prev := r.active[vp]
	delete(r.active, vp)
	r.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}

	c, err := New(vp, opts)
	if err != nil {
		return nil, err
	}
	c.registry = r

	r.mu.Lock()
	r.active[vp] = c
	r.mu.Unlock()
	return c, nil
}

// Lookup returns the controller installed on vp
func (r *Registry) Lookup(vp Viewport) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.active[vp]
	return c, ok
}

// Len returns the number of installed controllers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Registry) forget(vp Viewport, c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[vp] == c {
		delete(r.active, vp)
	}
}
