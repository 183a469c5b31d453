package provider

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Registry is the fixed set of adapters, built once at startup.
type Registry struct {
	adapters []Adapter
	byID     map[string]Adapter
}

// NewRegistry registers the adapters in order. Ids must be unique, non-empty
// and free of ':'.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{
		byID: make(map[string]Adapter, len(adapters)),
	}

	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("cannot register nil adapter")
		}
		id := a.Descriptor().ID
		if id == "" {
			return nil, fmt.Errorf("adapter id is required")
		}
		if strings.Contains(id, ":") {
			return nil, fmt.Errorf("adapter id %q must not contain ':'", id)
		}
		if _, exists := r.byID[id]; exists {
			return nil, fmt.Errorf("adapter with id %q already registered", id)
		}
		r.byID[id] = a
		r.adapters = append(r.adapters, a)
	}

	return r, nil
}

// All returns every adapter in registration order.
func (r *Registry) All() []Adapter {
	return slices.Clone(r.adapters)
}

// Get returns the adapter with the given id.
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// ForCollections returns the adapters serving at least one of collections,
// or all adapters when collections is empty. An empty result means no
// provider is eligible; it is not an error.
func (r *Registry) ForCollections(collections []string) []Adapter {
	if len(collections) == 0 {
		return r.All()
	}

	var matches []Adapter
	for _, a := range r.adapters {
		if a.Descriptor().Serves(collections) {
			matches = append(matches, a)
		}
	}
	return matches
}

// ResolveScene routes a canonical scene id to its adapter and returns the
// upstream-native id.
func (r *Registry) ResolveScene(sceneID string) (Adapter, string, error) {
	providerID, originalID, ok := SplitSceneID(sceneID)
	if !ok {
		return nil, "", fmt.Errorf("%w: scene id %q has no provider prefix", ErrUnknownProvider, sceneID)
	}

	a, ok := r.byID[providerID]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}
	if originalID == "" {
		return nil, "", fmt.Errorf("%w: scene id %q has an empty original id", ErrNotFound, sceneID)
	}

	return a, originalID, nil
}

// Authority returns the id of the provider authoritative for a mission
// family, or "" if none declares it.
func (r *Registry) Authority(mission string) string {
	for _, a := range r.adapters {
		if slices.Contains(a.Descriptor().Authoritative, mission) {
			return a.Descriptor().ID
		}
	}
	return ""
}

// Collections maps every served collection id to the providers serving it.
func (r *Registry) Collections() map[string][]string {
	out := make(map[string][]string)
	for _, a := range r.adapters {
		d := a.Descriptor()
		for _, c := range d.Collections {
			out[c] = append(out[c], d.ID)
		}
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}
