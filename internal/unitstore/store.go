// Package unitstore defines the interface for caching compiled units.
//
// # Keys
//
// Units are stored under a content key (see codegen.Key) derived from the
// fragment text, the ordered hashes of its includes, the slot bindings and
// the generator options. Equal keys imply byte-identical output, so a hit
// can be returned without regenerating anything.
//
// # Eviction
//
// The cache is unbounded. Entries leave only through Evict, which the
// dependency tracker calls for every fragment it invalidates. A stale unit
// left behind by a race is harmless: its key no longer matches any request.
package unitstore

import (
	"context"

	"github.com/specialistvlad/fragc/internal/codegen"
)

// Store is the interface for the compiled-unit cache.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use; compile workers read and
// write while file-change notifications evict.
type Store interface {
	// Get returns the unit cached under key. ok is false on a miss.
	Get(ctx context.Context, key string) (unit *codegen.CompiledUnit, ok bool, err error)

	// Put caches unit under key, replacing any previous entry.
	Put(ctx context.Context, key string, unit *codegen.CompiledUnit) error

	// Evict drops every unit generated for fragmentID and returns how many
	// entries were removed.
	Evict(ctx context.Context, fragmentID string) (int, error)

	// Len returns the number of cached units.
	Len(ctx context.Context) (int, error)
}
