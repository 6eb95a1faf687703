package param

import "fmt"

type entry struct {
	desc  Descriptor
	value *Value
}

// Registry is the lookup table mapping parameter IDs to descriptors and
// their atomic target cells. It is built once during (re)configuration and
// read-only afterwards, so the audio thread may resolve entries without
// synchronization.
type Registry struct {
	entries map[ID]*entry
	order   []ID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ID]*entry)}
}

// Register adds a descriptor and creates its target cell initialized to the
// default value. Registering a duplicate ID is a configuration error.
func (r *Registry) Register(d Descriptor) (*Value, error) {
	if d.Min > d.Max {
		return nil, fmt.Errorf("param %s: min %v exceeds max %v", d.ID, d.Min, d.Max)
	}

	if err := d.Validate(d.Default); err != nil {
		return nil, fmt.Errorf("param %s: invalid default: %w", d.ID, err)
	}

	if _, ok := r.entries[d.ID]; ok {
		return nil, fmt.Errorf("param %s: already registered", d.ID)
	}

	v := NewValue(d.Default)
	r.entries[d.ID] = &entry{desc: d, value: v}
	r.order = append(r.order, d.ID)

	return v, nil
}

// Lookup returns the descriptor and target cell for id.
func (r *Registry) Lookup(id ID) (Descriptor, *Value, bool) {
	e, ok := r.entries[id]
	if !ok {
		return Descriptor{}, nil, false
	}

	return e.desc, e.value, true
}

// Set validates v against the descriptor's range and stores it atomically.
// Out-of-range values are rejected; the previous target stays in effect.
func (r *Registry) Set(id ID, v float64) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("param %s: not registered", id)
	}

	if err := e.desc.Validate(v); err != nil {
		return err
	}

	e.value.Store(v)

	return nil
}

// Get returns the current target value for id.
func (r *Registry) Get(id ID) (float64, error) {
	e, ok := r.entries[id]
	if !ok {
		return 0, fmt.Errorf("param %s: not registered", id)
	}

	return e.value.Load(), nil
}

// IDs returns the registered IDs in registration order.
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.order))
	copy(out, r.order)

	return out
}
