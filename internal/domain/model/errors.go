package model

import "errors"

// Sentinel kinds for record validation errors.
var (
	ErrMissingID   = errors.New("record missing id")
	ErrMissingName = errors.New("record missing name")
)
