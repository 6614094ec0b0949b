package token

import "errors"

// Sentinel kinds for credential errors. Both are fatal for their platform.
var (
	// ErrCredentialExpired means the credential cannot be renewed without
	// an out-of-band authorization step.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrRefreshFailed means automated refresh was exhausted without
	// producing a valid credential.
	ErrRefreshFailed = errors.New("credential refresh failed")
)
