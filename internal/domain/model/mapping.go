package model

import "time"

// MappingKind scopes a cross-platform id mapping to a record family.
type MappingKind string

// Mapping kinds. Values double as storage keys, so they never change.
const (
	KindEvent       MappingKind = "events"
	KindConstituent MappingKind = "constituents"
)

// Mapping is a persisted (source id, target id) pair establishing
// cross-platform identity equivalence. Once recorded it is immutable.
type Mapping struct {
	Kind      MappingKind
	SourceID  string
	TargetID  string
	CreatedAt time.Time
}
