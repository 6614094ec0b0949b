package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/roster/internal/adapters/token"
	"github.com/okian/roster/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultPageSize    = 100
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBodyBytes  = 2048
)

// caller is the shared HTTP plumbing both platform clients are built on:
// bearer auth from a token provider, JSON codecs, and error classification.
type caller struct {
	platform string
	base     string
	hc       *http.Client
	tokens   token.Provider
	headers  map[string]string
}

func newCaller(platform, base string, tokens token.Provider) *caller {
	return &caller{
		platform: platform,
		base:     strings.TrimRight(base, "/"),
		hc:       &http.Client{Timeout: defaultHTTPTimeout},
		tokens:   tokens,
		headers:  map[string]string{},
	}
}

// doJSON performs one call. Token errors propagate unclassified so the
// orchestrator can recognize fatal credential states; everything that made
// it to the wire comes back as one of the gateway sentinels.
func (c *caller) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	accessToken, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%s credential: %w", c.platform, err)
	}

	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.platform, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.platform, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(c.platform, "transport_error")
		return fmt.Errorf("%w: %s %s: %v", ErrTransient, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		metrics.RecordGatewayRequest(c.platform, "error")
		return classifyStatus(method, path, resp.StatusCode, string(raw))
	}

	metrics.RecordGatewayRequest(c.platform, "ok")
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response from %s: %w", c.platform, path, err)
	}
	return nil
}

// classifyStatus maps an HTTP failure onto the gateway error taxonomy.
func classifyStatus(method, path string, status int, body string) error {
	var kind error
	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status >= http.StatusInternalServerError:
		kind = ErrTransient
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrPermission
	case status == http.StatusConflict:
		kind = ErrAlreadyRegistered
	default:
		// The target platform reports duplicate registrations as a
		// generic 400 with an explanatory message.
		if strings.Contains(strings.ToLower(body), "already exists") {
			kind = ErrAlreadyRegistered
		} else {
			kind = ErrValidation
		}
	}
	return fmt.Errorf("%w: %s %s returned %d: %s", kind, method, path, status, strings.TrimSpace(body))
}
