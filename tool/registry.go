package tool

import (
	"fmt"
)

// Registry is the authoritative, ordered set of tools a server exposes.
// It is built once at generation time, loaded once at server startup, and
// never mutated afterwards, so concurrent readers need no locking.
type Registry struct {
	ordered []*Definition
	byName  map[string]*Definition
}

// NewRegistry builds a registry preserving the given order. Duplicate names
// are a construction error: collision resolution is the compiler's job and
// must have happened already.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		ordered: make([]*Definition, 0, len(defs)),
		byName:  make(map[string]*Definition, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", d.Name)
		}
		r.byName[d.Name] = &d
		r.ordered = append(r.ordered, &d)
	}
	return r, nil
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// List returns the definitions in registry order. The slice is a copy; the
// definitions themselves are shared and must be treated as read-only.
func (r *Registry) List() []*Definition {
	out := make([]*Definition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Names returns the tool names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		names[i] = d.Name
	}
	return names
}
