package hostfunc

import (
	"context"
	"sort"
	"sync"
)

// Func is a host function callable from sandboxed code. Arguments arrive as
// guest values keyed by parameter name.
type Func func(ctx context.Context, args map[string]any) (any, error)

type entry struct {
	fn     Func
	params []string
}

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]entry)}
}

// Register binds fn under name. params names the positional arguments for
// guest languages that call host functions positionally.
func (r *Registry) Register(name string, fn Func, params ...string) {
	r.mu.Lock()
	r.funcs[name] = entry{fn: fn, params: params}
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	e, ok := r.funcs[name]
	r.mu.RUnlock()
	return e.fn, ok
}

// Params returns the positional parameter names declared for name.
func (r *Registry) Params(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.funcs[name].params
}

// List returns registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CopyTo registers every function of r into dst, keeping parameter names.
func (r *Registry) CopyTo(dst *Registry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, e := range r.funcs {
		dst.Register(name, e.fn, e.params...)
	}
}
