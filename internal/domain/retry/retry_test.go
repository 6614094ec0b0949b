package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func transientOnly(err error) bool { return errors.Is(err, errTransient) }

func fastPolicy(attempts int) *Policy {
	return NewPolicy(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
	)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	calls := 0

	got, err := Do(ctx, fastPolicy(3), transientOnly, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("unexpected result: %q", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsAtAttemptBudget(t *testing.T) {
	ctx := context.Background()
	calls := 0

	_, err := Do(ctx, fastPolicy(3), transientOnly, func() (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoFailsFastOnPermanentError(t *testing.T) {
	ctx := context.Background()
	calls := 0

	_, err := Do(ctx, fastPolicy(5), transientOnly, func() (int, error) {
		calls++
		return 0, errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestPolicyDefaults(t *testing.T) {
	p := NewPolicy()
	if p.MaxAttempts() != defaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", defaultMaxAttempts, p.MaxAttempts())
	}

	// Invalid option values leave defaults alone.
	p = NewPolicy(WithMaxAttempts(0), WithInitialDelay(0), WithMultiplier(0.5))
	if p.maxAttempts != defaultMaxAttempts || p.initialDelay != defaultInitialDelay || p.multiplier != defaultMultiplier {
		t.Error("invalid option values should not override defaults")
	}
}
