// Package store provides the shared state container passed through a
// workflow run. A single Store instance is created by the caller, handed to
// a flow's Run method, and mutated by node Post stages for the lifetime of
// that run.
//
// All operations are safe for concurrent use. Sequential flows never contend,
// but parallel batch flows run many graph traversals against one Store at
// once; aggregation across those traversals must go through Update or Append,
// which are atomic per key.
package store

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// UpdateFunc computes the new value for a key given the current one.
// current is nil and exists is false when the key has never been set.
type UpdateFunc func(current any, exists bool) any

// Store is a mutable key-value container shared by every node in a run.
// Values are dynamically typed; by convention they are JSON-compatible kinds
// (string, numbers, bool, []any, map[string]any) so equality and
// serialization stay well-defined.
type Store struct {
	data cmap.ConcurrentMap[string, any]
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: cmap.New[any]()}
}

// FromMap creates a Store seeded with the given entries.
func FromMap(seed map[string]any) *Store {
	s := New()
	for k, v := range seed {
		s.data.Set(k, v)
	}
	return s
}

// Set stores value under key, replacing any previous value. Last write wins.
func (s *Store) Set(key string, value any) {
	s.data.Set(key, value)
}

// Get returns the value stored under key, or nil when the key has never been
// set. A missing key is not an error.
func (s *Store) Get(key string) any {
	v, ok := s.data.Get(key)
	if !ok {
		return nil
	}
	return v
}

// Lookup returns the value stored under key and whether it was present.
func (s *Store) Lookup(key string) (any, bool) {
	return s.data.Get(key)
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	return s.data.Has(key)
}

// Remove deletes key and reports whether it was present.
func (s *Store) Remove(key string) bool {
	present := s.data.Has(key)
	s.data.Remove(key)
	return present
}

// Keys returns the keys currently present, in no particular order.
func (s *Store) Keys() []string {
	return s.data.Keys()
}

// Len returns the number of keys currently present.
func (s *Store) Len() int {
	return s.data.Count()
}

// Update atomically replaces the value under key with the result of fn.
// The read-modify-write cycle holds the key's shard lock, so concurrent
// updates to the same key never lose writes. The new value is returned.
func (s *Store) Update(key string, fn UpdateFunc) any {
	return s.data.Upsert(key, nil, func(exists bool, current any, _ any) any {
		return fn(current, exists)
	})
}

// Append atomically appends values to the []any stored under key, creating
// the slice if the key is absent. The stored slice is replaced rather than
// mutated in place, so slices handed out by earlier Get calls stay valid.
func (s *Store) Append(key string, values ...any) {
	s.Update(key, func(current any, exists bool) any {
		var list []any
		if exists {
			list, _ = current.([]any)
		}
		next := make([]any, 0, len(list)+len(values))
		next = append(next, list...)
		next = append(next, values...)
		return next
	})
}

// Merge sets every entry of m on the store. Existing keys are overwritten.
func (s *Store) Merge(m map[string]any) {
	for k, v := range m {
		s.data.Set(k, v)
	}
}

// Snapshot returns a copy of the store's current contents. The copy is
// shallow: contained slices and maps are shared with the store.
func (s *Store) Snapshot() map[string]any {
	return s.data.Items()
}
