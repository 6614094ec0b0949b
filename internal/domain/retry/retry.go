// Package retry wraps outbound platform calls in a bounded
// exponential-backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default policy constants. The attempt count and initial delay match the
// operational limits the platforms tolerate.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 2 * time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultMultiplier   = 2.0
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	maxAttempts  uint
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total attempt budget, first try included.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = uint(n)
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff interval.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		if m > 1 {
			p.multiplier = m
		}
	}
}

// NewPolicy creates a Policy with defaults, adjusted by options.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		multiplier:   defaultMultiplier,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the attempt budget, for skip logging.
func (p *Policy) MaxAttempts() int {
	return int(p.maxAttempts)
}

// Do runs op under the policy. Errors rejected by retryable fail
// immediately; retryable errors are reattempted with exponential backoff
// until the attempt budget is exhausted or ctx is done.
func Do[T any](ctx context.Context, p *Policy, retryable func(error) bool, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialDelay
	b.MaxInterval = p.maxDelay
	b.Multiplier = p.multiplier

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !retryable(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.maxAttempts))
}
