// Package metadata implements the metadata interning registry: the
// buffer's guarantee that two equal (timekey, tag, variables) triples
// share one canonical *chunk.Metadata instance, so it is safe to use as
// a map key.
package metadata

import "github.com/jittakal/chunkbuffer/pkg/chunk"

// Registry interns chunk.Metadata values by linear search over the live
// list. It is not itself safe for concurrent use: callers must hold
// their own lock around every method, matching the buffer-global lock
// discipline the metadata registry is specified to run under.
type Registry struct {
	list []*chunk.Metadata
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// New constructs a fresh, uninterned Metadata value. Combine with Add,
// or call Metadata directly, to get the canonical instance.
func (r *Registry) New(timeKey, tag string, variables map[string]string) *chunk.Metadata {
	return chunk.NewMetadata(timeKey, tag, variables)
}

// Add interns m, returning the canonical instance: an existing entry if
// one is Equal to m, otherwise m itself after appending it to the list.
func (r *Registry) Add(m *chunk.Metadata) *chunk.Metadata {
	for _, existing := range r.list {
		if existing.Equal(m) {
			return existing
		}
	}
	r.list = append(r.list, m)
	return m
}

// Metadata combines New and Add: it returns the canonical instance for
// the given triple, creating one if this is the first sighting.
func (r *Registry) Metadata(timeKey, tag string, variables map[string]string) *chunk.Metadata {
	return r.Add(r.New(timeKey, tag, variables))
}

// List returns a shallow copy of the live metadata list, isolating
// enumerators from concurrent writes by later callers.
func (r *Registry) List() []*chunk.Metadata {
	out := make([]*chunk.Metadata, len(r.list))
	copy(out, r.list)
	return out
}

// Remove drops m from the registry by pointer identity. It is a no-op
// if m is not present.
func (r *Registry) Remove(m *chunk.Metadata) {
	for i, existing := range r.list {
		if existing == m {
			r.list = append(r.list[:i], r.list[i+1:]...)
			return
		}
	}
}
