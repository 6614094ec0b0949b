package repository

import "errors"

// Sentinel kinds for mapping store errors.
var (
	ErrNotFound = errors.New("mapping not found")
	ErrConflict = errors.New("mapping conflict")
)
