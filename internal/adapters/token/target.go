package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// renewalHint tells the operator how to recover from a dead target
// credential; the authorization-code flow needs a human in the loop.
const renewalHint = "re-run the target platform authorization flow and supply the new access token"

// Target wraps the externally supplied credential for the target platform.
// There is no refresh capability: once the token expires the provider
// latches into a fatal state and every call fails with ErrCredentialExpired.
type Target struct {
	mu    sync.Mutex
	tok   *oauth2.Token
	skew  time.Duration
	fatal bool
}

// TargetOption applies a configuration option to the Target provider.
type TargetOption func(*Target)

// WithTargetExpirySkew treats the token as expired this long before its
// stated deadline.
func WithTargetExpirySkew(skew time.Duration) TargetOption {
	return func(t *Target) {
		if skew > 0 {
			t.skew = skew
		}
	}
}

// WithTargetCachePath loads the credential from path when accessToken is
// empty, and persists a supplied credential there.
func WithTargetCachePath(path string) TargetOption {
	return func(t *Target) {
		if path == "" {
			return
		}
		if t.tok.AccessToken == "" {
			if cached, err := loadCredential(path); err == nil {
				t.tok = cached
			}
			return
		}
		_ = saveCredential(path, t.tok)
	}
}

// NewTarget creates a Target provider around an externally issued token.
// expiresAt may be zero when the issuer did not state a deadline.
func NewTarget(accessToken string, expiresAt time.Time, opts ...TargetOption) *Target {
	t := &Target{
		tok:  &oauth2.Token{AccessToken: accessToken, Expiry: expiresAt},
		skew: defaultExpirySkew,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AccessToken returns the supplied token while it is valid and fails with
// ErrCredentialExpired once it is absent or past its deadline.
func (t *Target) AccessToken(_ context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fatal || !fresh(t.tok, t.skew) {
		t.fatal = true
		return "", fmt.Errorf("%w: %s", ErrCredentialExpired, renewalHint)
	}
	return t.tok.AccessToken, nil
}
