package uberjob

import (
	"fmt"
	"time"
)

// ValueStore is the external contract the core treats as opaque and may
// invoke concurrently on worker goroutines (except that the same store's
// Write is always followed by its own Read strictly in sequence, via an
// injected Dependency edge). Implementations live in the stores
// subpackage; ValueStore is an open capability set, not a closed
// interface hierarchy.
type ValueStore interface {
	// Read returns the currently stored value.
	Read() (any, error)
	// Write persists value.
	Write(value any) error
	// ModifiedTime returns the store's last-write time, or the zero
	// Time and ok=false if no value has ever been stored.
	ModifiedTime() (t time.Time, ok bool, err error)
}

// registryValue records how a node relates to a ValueStore: as a stored
// (write-then-read) node or a sourced (read-only placeholder) node.
type registryValue struct {
	store    ValueStore
	isSource bool
	frames   []StackFrame
}

// Registry is a mapping from Plan node identity to ValueStore, split into
// two disjoint relationships: stored nodes (user computation persisted
// through a store) and sourced nodes (placeholders that only read).
type Registry struct {
	mapping map[*Node]registryValue
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{mapping: make(map[*Node]registryValue)}
}

// Add records a stored relationship between node and store. It fails if
// node already has a value store or does not belong to a plan.
func (r *Registry) Add(node *Node, store ValueStore) error {
	if node == nil {
		return &ConstructionError{Op: "registry.add", Err: fmt.Errorf("node must not be nil")}
	}
	if store == nil {
		return &ConstructionError{Op: "registry.add", Err: fmt.Errorf("store must not be nil")}
	}
	if node.plan == nil {
		return &ConstructionError{Op: "registry.add", Err: fmt.Errorf("node does not belong to a plan")}
	}
	if _, exists := r.mapping[node]; exists {
		return &ConstructionError{Op: "registry.add", Err: fmt.Errorf("node already has a value store")}
	}
	r.mapping[node] = registryValue{store: store, isSource: false, frames: captureStackFrames(1, DefaultTracebackDepth)}
	return nil
}

// Source adds a placeholder Call node to plan whose fn raises
// ErrNotTransformed if ever invoked, and records a sourced relationship
// with store. The returned node participates in the plan like any other
// Call node (it may be the target of Dependency edges to model a
// "dependent source").
func (r *Registry) Source(plan *Plan, store ValueStore) (*Node, error) {
	if plan == nil {
		return nil, &ConstructionError{Op: "registry.source", Err: fmt.Errorf("plan must not be nil")}
	}
	if store == nil {
		return nil, &ConstructionError{Op: "registry.source", Err: fmt.Errorf("store must not be nil")}
	}
	frames := captureStackFrames(1, plan.tracebackDepth)
	node, err := plan.callNode(sourcePlaceholderFn(), frames)
	if err != nil {
		return nil, err
	}
	r.mapping[node] = registryValue{store: store, isSource: true, frames: frames}
	return node, nil
}

// Contains reports whether node has a value store, stored or sourced.
func (r *Registry) Contains(node *Node) bool {
	_, ok := r.mapping[node]
	return ok
}

// Get returns the ValueStore for node, or nil if node is not registered.
func (r *Registry) Get(node *Node) ValueStore {
	if v, ok := r.mapping[node]; ok {
		return v.store
	}
	return nil
}

// IsSource reports whether node was registered via Source (as opposed to
// Add).
func (r *Registry) IsSource(node *Node) bool {
	v, ok := r.mapping[node]
	return ok && v.isSource
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int { return len(r.mapping) }

// Nodes returns every registered node, in unspecified order.
func (r *Registry) Nodes() []*Node {
	out := make([]*Node, 0, len(r.mapping))
	for n := range r.mapping {
		out = append(out, n)
	}
	return out
}

// Copy returns a shallow copy of the Registry: the same nodes and stores,
// independently mutable mapping.
func (r *Registry) Copy() *Registry {
	out := NewRegistry()
	for n, v := range r.mapping {
		out.mapping[n] = v
	}
	return out
}
