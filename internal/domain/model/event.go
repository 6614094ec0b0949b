// Package model contains domain records passed between layers.
package model

import "time"

// EventRecord is the canonical shape of an event pulled from the source
// platform. Fields mirror the source API payload after normalization.
type EventRecord struct {
	ID          string    // source platform event id
	Name        string    // display name
	Description string    // free-form description
	StartsAt    time.Time // event start; zero when the source omitted it
	EndsAt      time.Time // event end; zero when open-ended
	Capacity    int       // maximum participants; 0 means unbounded
}

// Validate reports whether the record carries the fields the target
// platform requires for event creation.
func (e EventRecord) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.Name == "" {
		return ErrMissingName
	}
	return nil
}
