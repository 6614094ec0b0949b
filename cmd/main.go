package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/okian/roster/internal/adapters/gateway"
	"github.com/okian/roster/internal/adapters/repository"
	"github.com/okian/roster/internal/adapters/token"
	"github.com/okian/roster/internal/app"
	"github.com/okian/roster/internal/config"
	"github.com/okian/roster/internal/domain/retry"
	"github.com/okian/roster/pkg/logger"
	"github.com/okian/roster/pkg/metrics"
)

// Credential cache file names under token_cache_dir.
const (
	sourceTokenFile = "source_token.json"
	targetTokenFile = "target_token.json"
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "sync failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run executes one sync pass and reports its outcome. A non-nil error means
// the pass did not visit every record; per-record skips do not fail the run.
func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(cfg.MappingDBPath)
	if err != nil {
		return fmt.Errorf("opening mapping store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing mapping store", logger.Error(err))
		}
	}()

	policy := retry.NewPolicy(
		retry.WithMaxAttempts(cfg.RetryMaxAttempts),
		retry.WithInitialDelay(time.Duration(cfg.RetryInitialDelayMS)*time.Millisecond),
		retry.WithMaxDelay(time.Duration(cfg.RetryMaxDelayMS)*time.Millisecond),
	)
	skew := time.Duration(cfg.TokenExpirySkewMS) * time.Millisecond

	sourceTokens := token.NewSource(cfg.SourceClientID, cfg.SourceClientSecret, cfg.SourceTokenURL,
		token.WithCachePath(filepath.Join(cfg.TokenCacheDir, sourceTokenFile)),
		token.WithExpirySkew(skew),
		token.WithRetryPolicy(policy),
	)

	var targetDeadline time.Time
	if cfg.TargetTokenExpiresAt != "" {
		targetDeadline, err = time.Parse(time.RFC3339, cfg.TargetTokenExpiresAt)
		if err != nil {
			return fmt.Errorf("%w: target_token_expires_at: %v", config.ErrInvalidConfig, err)
		}
	}
	targetTokens := token.NewTarget(cfg.TargetAccessToken, targetDeadline,
		token.WithTargetCachePath(filepath.Join(cfg.TokenCacheDir, targetTokenFile)),
		token.WithTargetExpirySkew(skew),
	)

	source := gateway.NewSource(cfg.SourceBaseURL, sourceTokens,
		gateway.WithSourcePageSize(cfg.PageSize),
	)
	target := gateway.NewTarget(cfg.TargetBaseURL, targetTokens,
		gateway.WithSubscriptionKey(cfg.TargetSubscriptionKey),
		gateway.WithMatchFields(cfg.MatchFields),
	)

	svc, err := app.New(
		app.WithLogger(log.Named("orchestrator")),
		app.WithMappings(store),
		app.WithSource(source),
		app.WithTarget(target),
		app.WithRetryPolicy(policy),
	)
	if err != nil {
		return err
	}

	summary, runErr := svc.Run(ctx)

	if summary != nil {
		printSummary(summary)
	}
	if cfg.MetricsTextfile != "" {
		if err := metrics.Global().WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn(ctx, "writing metrics textfile", logger.String("path", cfg.MetricsTextfile), logger.Error(err))
		}
	}
	if err := store.Flush(ctx); err != nil {
		log.Warn(ctx, "flushing mapping store", logger.Error(err))
	}

	return runErr
}

// printSummary writes the pass outcome to stdout; logs go to stderr.
func printSummary(s *app.Summary) {
	fmt.Printf("run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Printf("  events:       %d created, %d reused, %d skipped\n", s.EventsCreated, s.EventsReused, s.EventsSkipped)
	fmt.Printf("  constituents: %d created, %d adopted, %d reused\n", s.ConstituentsCreated, s.ConstituentsAdopted, s.ConstituentsReused)
	fmt.Printf("  registrations: %d issued, %d already in place, %d participants skipped\n",
		s.Registrations, s.DuplicateRegistrations, s.ParticipantsSkipped)
}
