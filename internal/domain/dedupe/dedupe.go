// Package dedupe tracks attendance registrations issued within a single
// sync pass, so a person listed twice under one event is registered once.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records (event, constituent) pairs to keep registration calls
// idempotent within a run. The target platform tolerates duplicates across
// runs; this only saves redundant calls inside one pass.
type Deduper interface {
	// SeenAndRecord atomically checks whether the pair was already
	// registered this run and records it if not. Returns true if the pair
	// was already seen.
	SeenAndRecord(ctx context.Context, targetEventID, targetConstituentID string) bool

	// Size returns the number of recorded pairs.
	Size() int
}

// inMemoryDeduper implements Deduper with a plain map. A sync pass has a
// single writer, but the mutex keeps the type safe for reuse.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[pairKey]struct{}
}

type pairKey struct {
	eventID       string
	constituentID string
}

// New creates an empty in-memory deduper.
func New() Deduper {
	return &inMemoryDeduper{seen: make(map[pairKey]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, targetEventID, targetConstituentID string) bool {
	key := pairKey{eventID: targetEventID, constituentID: targetConstituentID}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
