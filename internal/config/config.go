// Package config defines the sync process configuration and its loading.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment on top.
// - External errors must be wrapped via this package's error helpers.
package config

import "path/filepath"

// Config contains everything one sync pass needs. Credentials have no
// defaults and must come from the environment or a config file.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// SourceBaseURL is the member-management platform API root.
	SourceBaseURL string `koanf:"source_base_url"`

	// SourceTokenURL is the OAuth2 client-credentials token endpoint.
	SourceTokenURL string `koanf:"source_token_url"`

	// SourceClientID and SourceClientSecret authenticate the sync service
	// against the source platform.
	SourceClientID     string `koanf:"source_client_id"`
	SourceClientSecret string `koanf:"source_client_secret"`

	// TargetBaseURL is the constituent-management platform API root.
	TargetBaseURL string `koanf:"target_base_url"`

	// TargetAccessToken is the manually provisioned target token. It
	// cannot be refreshed by this process; when it expires an operator
	// must issue a new one.
	TargetAccessToken string `koanf:"target_access_token"`

	// TargetTokenExpiresAt is the token deadline in RFC3339. Empty means
	// the deadline is unknown and the token is trusted until rejected.
	TargetTokenExpiresAt string `koanf:"target_token_expires_at"`

	// TargetSubscriptionKey is the API product subscription key sent on
	// every target platform request.
	TargetSubscriptionKey string `koanf:"target_subscription_key"`

	// MappingDBPath locates the SQLite mapping database.
	MappingDBPath string `koanf:"mapping_db_path"`

	// TokenCacheDir holds cached credential files between runs.
	TokenCacheDir string `koanf:"token_cache_dir"`

	// PageSize sets how many records each source listing page requests.
	PageSize int `koanf:"page_size"`

	// Retry tuning for rate-limit and server-error responses.
	RetryMaxAttempts    int `koanf:"retry_max_attempts"`
	RetryInitialDelayMS int `koanf:"retry_initial_delay_ms"`
	RetryMaxDelayMS     int `koanf:"retry_max_delay_ms"`

	// TokenExpirySkewMS refreshes tokens this long before their deadline.
	TokenExpirySkewMS int `koanf:"token_expiry_skew_ms"`

	// MatchFields orders the identity fields used to adopt existing
	// constituents. Supported: email, name.
	MatchFields []string `koanf:"match_fields"`

	// MetricsTextfile, when set, receives the run's metrics in the
	// Prometheus textfile collector format.
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// New creates a Config with defaults. Credential fields stay empty.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		MappingDBPath:       filepath.Join("data", "mappings.db"),
		TokenCacheDir:       filepath.Join("data", "tokens"),
		PageSize:            100,
		RetryMaxAttempts:    3,
		RetryInitialDelayMS: 2000,
		RetryMaxDelayMS:     30_000,
		TokenExpirySkewMS:   120_000,
		MatchFields:         []string{"email", "name"},
	}
}
