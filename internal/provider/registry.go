package provider

import (
	"fmt"
)

// Registry is a name-keyed set of providers. Registration order is kept and
// drives Names and Alternate.
type Registry struct {
	order     []string
	providers map[string]Provider
	labels    map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		labels:    make(map[string]string),
	}
}

// Register adds p under p.Name() with a human-readable label. Registering
// the same name twice replaces the provider but keeps its position.
func (r *Registry) Register(p Provider, label string) {
	name := p.Name()
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	if label == "" {
		label = name
	}
	r.labels[name] = label
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Label returns the display label for name, or name itself.
func (r *Registry) Label(name string) string {
	if label, ok := r.labels[name]; ok {
		return label
	}
	return name
}

// Alternate returns the provider registered after name, wrapping around.
// It returns "" when no other provider is registered.
func (r *Registry) Alternate(name string) string {
	if len(r.order) < 2 {
		return ""
	}
	for i, n := range r.order {
		if n == name {
			return r.order[(i+1)%len(r.order)]
		}
	}
	return r.order[0]
}

// Next is Alternate without the single-provider special case; it is used for
// cycling through providers in the terminal UI.
func (r *Registry) Next(name string) string {
	if alt := r.Alternate(name); alt != "" {
		return alt
	}
	return name
}

// DecodeState restores a serialized state using the decoder of the named
// provider.
func (r *Registry) DecodeState(name string, raw []byte) (State, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	decoder, ok := p.(StateDecoder)
	if !ok {
		return nil, fmt.Errorf("provider %q cannot decode mailbox state", name)
	}
	return decoder.DecodeState(raw)
}
