package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if ROSTER_CONFIG is set
//  3. env (prefix ROSTER_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ROSTER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: ROSTER_SOURCE_BASE_URL, ROSTER_PAGE_SIZE, ...
	// Map env keys like ROSTER_PAGE_SIZE -> page_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("ROSTER_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "roster_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configs that cannot reach either platform. Tuning fields
// fall back to defaults instead of failing.
func (c *Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"source_base_url", c.SourceBaseURL},
		{"source_token_url", c.SourceTokenURL},
		{"source_client_id", c.SourceClientID},
		{"source_client_secret", c.SourceClientSecret},
		{"target_base_url", c.TargetBaseURL},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, field.name)
		}
	}

	defaults := New()
	if c.PageSize <= 0 {
		c.PageSize = defaults.PageSize
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = defaults.RetryMaxAttempts
	}
	if c.RetryInitialDelayMS <= 0 {
		c.RetryInitialDelayMS = defaults.RetryInitialDelayMS
	}
	if c.RetryMaxDelayMS <= 0 {
		c.RetryMaxDelayMS = defaults.RetryMaxDelayMS
	}
	if c.TokenExpirySkewMS < 0 {
		c.TokenExpirySkewMS = defaults.TokenExpirySkewMS
	}
	return nil
}
