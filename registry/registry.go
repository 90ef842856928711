// Package registry implements the Module Registry: modules
// self-register under an importable type name; the registry resolves that
// name to a constructor plus its connection/parameter schemas and
// lifecycle hooks.
//
// Registration is a flat function call (Register), not a type hierarchy,
// so there is no mechanism by which a registered type's "importability"
// could be inherited by a derived type the way a subclass might inherit a
// base class's registration in an object system. A module embedding another's struct
// to reuse behavior still must call Register itself under its own type
// name to become resolvable.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Biscgit/streamlet/module"
	"github.com/Biscgit/streamlet/schema"
)

// Constructor builds a module instance from its name, connection config,
// and (for Transform/Output) module params, or (for Input) nothing here --
// task-level params are passed later at Run time.
type Constructor func(name string, connection map[string]any) (module.Module, error)

// Entry is everything the registry records for one module type:
// variant, constructor, connection schema, parameter
// schema (task-parameters for Inputs, module-parameters for
// Transforms/Outputs), and lifecycle hooks (carried by the constructed
// instance itself, per module.Lifecycle).
type Entry struct {
	Type             string
	Variant          module.Variant
	Constructor      Constructor
	ConnectionSchema schema.Node
	ParamSchema      schema.Node
}

// Registry is a thread-safe store of registered module type Entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds e to the registry. It rejects duplicate type names.
func (r *Registry) Register(e Entry) error {
	if e.Type == "" {
		return fmt.Errorf("registry: module entry must declare a non-empty Type")
	}
	if e.Constructor == nil {
		return fmt.Errorf("registry: module type %q has no constructor", e.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Type]; exists {
		return fmt.Errorf("registry: duplicate module type %q", e.Type)
	}
	r.entries[e.Type] = &e
	return nil
}

// Get resolves a type name to its Entry.
func (r *Registry) Get(typ string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typ]
	return e, ok
}

// Types returns all known type names of every variant in sorted order.
// "Unknown module type" suggestions use TypesForVariant instead.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TypesForVariant returns the known type names restricted to one variant.
func (r *Registry) TypesForVariant(v module.Variant) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0)
	for t, e := range r.entries {
		if e.Variant == v {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
