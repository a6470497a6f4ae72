// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the unitstore.Store interface.
//
// # Concurrency Model
//
// Units live in a sync.Map keyed by content key: lookups vastly outnumber
// writes once a project is warm, and different keys never contend. A
// secondary index from fragment id to its keys makes Evict proportional to
// the fragment's own entries; it is guarded by a mutex because eviction
// must remove a consistent set.
package inmemorystore

import (
	"context"
	"sync"

	"github.com/specialistvlad/fragc/internal/codegen"
	"github.com/specialistvlad/fragc/internal/unitstore"
)

// Store is an in-memory implementation of unitstore.Store.
type Store struct {
	units sync.Map // Key: content key, Value: *codegen.CompiledUnit

	mu     sync.Mutex
	byFrag map[string]map[string]struct{} // fragment id -> content keys
}

// New creates a new, empty in-memory unit store.
func New() unitstore.Store {
	return &Store{byFrag: make(map[string]map[string]struct{})}
}

// Get retrieves the unit cached under key.
func (s *Store) Get(ctx context.Context, key string) (*codegen.CompiledUnit, bool, error) {
	unit, ok := s.units.Load(key)
	if !ok {
		return nil, false, nil
	}
	return unit.(*codegen.CompiledUnit), true, nil
}

// Put caches unit under key.
func (s *Store) Put(ctx context.Context, key string, unit *codegen.CompiledUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.byFrag[unit.FragmentID]
	if !ok {
		keys = make(map[string]struct{})
		s.byFrag[unit.FragmentID] = keys
	}
	keys[key] = struct{}{}
	s.units.Store(key, unit)
	return nil
}

// Evict drops every unit generated for fragmentID.
func (s *Store) Evict(ctx context.Context, fragmentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.byFrag[fragmentID]
	for key := range keys {
		s.units.Delete(key)
	}
	delete(s.byFrag, fragmentID)
	return len(keys), nil
}

// Len returns the number of cached units.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, keys := range s.byFrag {
		n += len(keys)
	}
	return n, nil
}
