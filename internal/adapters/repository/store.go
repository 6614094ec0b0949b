// Package repository persists the bidirectional id mappings between the two
// platforms. The mapping relation is a function both ways per kind: one
// source id maps to at most one target id and vice versa.
package repository

import (
	"context"

	"github.com/okian/roster/internal/domain/model"
)

// Store is the durable translation table between the two id spaces.
// Writes are append-or-noop; mappings are never mutated or deleted, so an
// interrupted run can resume by looking up what it already synced.
type Store interface {
	// Lookup returns the target id recorded for a source id, or ErrNotFound.
	Lookup(ctx context.Context, kind model.MappingKind, sourceID string) (string, error)

	// Record persists a new mapping. Recording an identical existing pair
	// is a no-op; a pair that contradicts an existing mapping in either
	// direction fails with ErrConflict and leaves the store unchanged.
	Record(ctx context.Context, kind model.MappingKind, sourceID, targetID string) error

	// Count returns the number of mappings recorded for a kind.
	Count(ctx context.Context, kind model.MappingKind) (int, error)

	// Flush forces durable state to disk. Record already commits each
	// mapping, so a crash loses at most the in-flight write.
	Flush(ctx context.Context) error

	Close() error
}
