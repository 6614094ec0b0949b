package app

import "errors"

var (
	// ErrMissingDependency indicates the service was constructed without a
	// required collaborator.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrRunAborted indicates a sync pass stopped before visiting every
	// record, usually on a dead credential.
	ErrRunAborted = errors.New("sync run aborted")
)
