package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/roster/internal/domain/retry"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Source produces valid credentials for the source platform using the
// client-credentials flow. The current token is cached in memory and
// persisted to a JSON file, so repeated short runs reuse one grant.
type Source struct {
	mu sync.Mutex

	conf      *clientcredentials.Config
	tok       *oauth2.Token
	loaded    bool // credential file consulted once, lazily
	cachePath string
	skew      time.Duration
	policy    *retry.Policy
	logger    logger.Logger
}

// SourceOption applies a configuration option to the Source provider.
type SourceOption func(*Source)

// WithCachePath persists the current credential at path.
func WithCachePath(path string) SourceOption {
	return func(s *Source) { s.cachePath = path }
}

// WithExpirySkew refreshes this long before the token's deadline.
func WithExpirySkew(skew time.Duration) SourceOption {
	return func(s *Source) {
		if skew > 0 {
			s.skew = skew
		}
	}
}

// WithRetryPolicy bounds refresh attempts.
func WithRetryPolicy(p *retry.Policy) SourceOption {
	return func(s *Source) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithSourceLogger sets a custom logger.
func WithSourceLogger(l logger.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSource creates a Source provider for the given OAuth2 client.
func NewSource(clientID, clientSecret, tokenURL string, opts ...SourceOption) *Source {
	s := &Source{
		conf: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		skew:   defaultExpirySkew,
		policy: retry.NewPolicy(),
		logger: logger.Get().Named("token"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessToken returns the cached token when still fresh, otherwise performs
// a refresh with bounded retries and persists the new credential.
func (s *Source) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fresh(s.tok, s.skew) {
		return s.tok.AccessToken, nil
	}

	if !s.loaded && s.cachePath != "" {
		s.loaded = true
		if tok, err := loadCredential(s.cachePath); err == nil && fresh(tok, s.skew) {
			s.tok = tok
			return tok.AccessToken, nil
		}
	}

	tok, err := retry.Do(ctx, s.policy, refreshRetryable, func() (*oauth2.Token, error) {
		return s.conf.Token(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	s.tok = tok
	metrics.RecordTokenRefresh("source")
	s.logger.Info(ctx, "source credential refreshed", logger.Time("expires_at", tok.Expiry))

	if s.cachePath != "" {
		if err := saveCredential(s.cachePath, tok); err != nil {
			// A missing cache only costs an extra refresh next run.
			s.logger.Warn(ctx, "failed to persist source credential", logger.Error(err))
		}
	}
	return tok.AccessToken, nil
}

// refreshRetryable classifies refresh failures: rate limits, 5xx responses
// and transport errors are transient; rejected grants are not.
func refreshRetryable(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response == nil {
			return true
		}
		code := retrieveErr.Response.StatusCode
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	// Anything that never reached the endpoint is worth another attempt.
	return true
}
