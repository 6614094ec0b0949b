// Package gateway holds the thin REST clients for the two platforms and the
// capability contracts the orchestrator drives them through. Errors coming
// out of either client are classified into the sentinel kinds in errors.go
// so callers can decide between retry, skip, and abort.
package gateway

import (
	"context"

	"github.com/okian/roster/internal/domain/model"
)

// Platform labels used in logs and metrics.
const (
	PlatformSource = "source"
	PlatformTarget = "target"
)

// Source reads events and registrations from the system of record.
type Source interface {
	// ListEvents returns every event known to the source platform, in
	// source order. Pagination happens internally.
	ListEvents(ctx context.Context) ([]model.EventRecord, error)

	// ListParticipants returns the registrations for one source event.
	ListParticipants(ctx context.Context, sourceEventID string) ([]model.ParticipantRecord, error)

	// MemberDetails returns the member's full profile. Participant rows
	// are sparse; profiles carry contact fields needed for matching.
	MemberDetails(ctx context.Context, memberID string) (model.ParticipantRecord, error)
}

// Target writes events, constituents and registrations into the
// constituent-management platform.
type Target interface {
	// CreateEvent materializes a source event and returns the new id.
	CreateEvent(ctx context.Context, event model.EventRecord) (string, error)

	// FindConstituent looks for an existing person by identity fields.
	// Returns ErrNotFound when no exact match exists.
	FindConstituent(ctx context.Context, identity model.Identity) (string, error)

	// CreateConstituent creates a new person record and returns its id.
	CreateConstituent(ctx context.Context, identity model.Identity) (string, error)

	// RegisterParticipant adds a constituent to an event. Registering an
	// already registered pair fails with ErrAlreadyRegistered.
	RegisterParticipant(ctx context.Context, targetEventID, targetConstituentID, rsvpStatus string) error
}
