// Package token manages credential lifecycles per platform. The source
// platform grants tokens through the client-credentials flow and can be
// refreshed autonomously; the target platform's token comes from a human
// authorization step and can only be detected as expired.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// defaultExpirySkew refreshes tokens slightly ahead of their deadline so a
// token never expires mid-request.
const defaultExpirySkew = 2 * time.Minute

// Provider hands out a currently valid access token.
type Provider interface {
	AccessToken(ctx context.Context) (string, error)
}

// IsFatal reports whether a credential error aborts the run for its
// platform. Fatal errors need operator action and are never retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCredentialExpired) || errors.Is(err, ErrRefreshFailed)
}

// fresh reports whether a token is still usable with the given skew. Tokens
// without a known expiry are trusted.
func fresh(tok *oauth2.Token, skew time.Duration) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return time.Until(tok.Expiry) > skew
}

// loadCredential reads the persisted current credential for a platform.
func loadCredential(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	return &tok, nil
}

// saveCredential replaces the persisted credential wholesale.
func saveCredential(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}
