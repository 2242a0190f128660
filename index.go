package relay

import "fmt"

// Binding pairs a capability with the invoker that executes it.
type Binding struct {
	Capability Capability
	Invoker    Invoker
}

// Shadow records a capability name advertised by more than one endpoint.
// The later binding replaced the earlier one.
type Shadow struct {
	Name   string
	Winner string // endpoint id that now owns Name
	Loser  string // endpoint id whose capability was replaced
}

// Index is a read-only, name-keyed lookup of bound capabilities. It is built
// once per discovery pass and never mutated afterwards.
//
// On a name collision the binding that comes later wins. This mirrors the
// iteration order of discovery and can silently shadow a capability of an
// earlier endpoint; every such replacement is recorded and exposed through
// Shadowed so callers can surface it.
type Index struct {
	order    []string
	bindings map[string]Binding
	shadowed []Shadow
}

// NewIndex builds an Index from bindings in discovery order.
func NewIndex(bindings ...Binding) *Index {
	idx := &Index{bindings: make(map[string]Binding, len(bindings))}
	for _, b := range bindings {
		name := b.Capability.Name
		if prev, ok := idx.bindings[name]; ok {
			idx.shadowed = append(idx.shadowed, Shadow{
				Name:   name,
				Winner: b.Capability.Endpoint,
				Loser:  prev.Capability.Endpoint,
			})
		} else {
			idx.order = append(idx.order, name)
		}
		idx.bindings[name] = b
	}
	return idx
}

// Lookup returns the binding for name. Unknown names yield an error wrapping
// [ErrCapabilityNotFound].
func (idx *Index) Lookup(name string) (Binding, error) {
	b, ok := idx.bindings[name]
	if !ok {
		return Binding{}, fmt.Errorf("%q: %w", name, ErrCapabilityNotFound)
	}
	return b, nil
}

// Capabilities returns the resolved capabilities, ordered by first
// appearance of each name.
func (idx *Index) Capabilities() []Capability {
	out := make([]Capability, len(idx.order))
	for i, name := range idx.order {
		out[i] = idx.bindings[name].Capability
	}
	return out
}

// Len returns the number of distinct capability names.
func (idx *Index) Len() int { return len(idx.order) }

// Shadowed returns the name collisions resolved while building the index.
func (idx *Index) Shadowed() []Shadow {
	return append([]Shadow(nil), idx.shadowed...)
}
