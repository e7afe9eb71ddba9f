package vision

import (
	"context"
	"math/rand"
	"time"
)

// Retry policy defaults.
const (
	// DefaultMaxRetries is the number of additional attempts after the first.
	DefaultMaxRetries = 2
	// DefaultBaseDelay is the first backoff delay.
	DefaultBaseDelay = 500 * time.Millisecond
	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 8 * time.Second
	// DefaultAttemptTimeout is the hard per-attempt deadline. A timeout
	// aborts the in-flight call and counts as a retriable failure.
	DefaultAttemptTimeout = 30 * time.Second

	// jitterFraction is the maximum fraction of the base backoff added as
	// jitter. Jitter is only ever added, never subtracted.
	jitterFraction = 0.3
)

// Rand is the random source for backoff jitter. Injected rather than
// using the package-global rand so retry timing is deterministically
// testable.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// RetryPolicy configures the retry/backoff wrapper applied to every
// outbound recognition call.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the backoff delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// AttemptTimeout is the per-attempt deadline.
	AttemptTimeout time.Duration
	// Rand supplies jitter. Defaults to a time-seeded source.
	Rand Rand
}

// DefaultRetryPolicy returns the stock policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = DefaultAttemptTimeout
	}
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p
}

// backoff returns the delay before retry attempt (0-based):
// min(base * 2^attempt, max) plus up to jitterFraction additive jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	jitter := time.Duration(p.Rand.Float64() * jitterFraction * float64(delay))
	return delay + jitter
}

// Do runs fn with the retry policy applied.
//
// Each attempt runs under its own deadline. Non-retriable failures (auth)
// stop immediately; retriable failures back off and try again until
// attempts are exhausted. The returned error is the last attempt's error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	attempts := 1 + p.MaxRetries

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Backoff before retries, not before the first attempt.
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff(i - 1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		lastErr = fn(attemptCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if !retriable(classifyError(lastErr)) {
			return lastErr
		}
	}

	return lastErr
}
