package gateway

import "errors"

// Sentinel kinds for gateway errors, one per class of failure the
// orchestrator handles differently.
var (
	ErrRateLimited       = errors.New("rate limited")
	ErrTransient         = errors.New("transient platform error")
	ErrValidation        = errors.New("rejected as invalid")
	ErrPermission        = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyRegistered = errors.New("already registered")
)

// Retryable reports whether another attempt at the same call can succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
