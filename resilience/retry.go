package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/itsneelabh/gomind/core"
)

// RetryConfig configures retry behavior. Delay for attempt k (0-indexed) is
// min(MaxDelay, RetryDelay*2^k + jitter), jitter uniform in [0, 1000)ms,
// exactly as spec.md §4.1 requires.
type RetryConfig struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxDelay      time.Duration
	JitterEnabled bool
}

// DefaultRetryConfig provides spec.md §4.1's defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		RetryDelay:    100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		JitterEnabled: true,
	}
}

// backoffDelay computes the delay before retry attempt k (0-indexed: the
// delay taken after the first failed attempt uses k=0).
func backoffDelay(config *RetryConfig, k int) time.Duration {
	base := float64(config.RetryDelay) * float64(uint64(1)<<uint(k))
	delay := time.Duration(base)
	if config.JitterEnabled {
		delay += time.Duration(rand.Intn(1000)) * time.Millisecond
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// Retry executes fn up to config.MaxAttempts times, sleeping between
// attempts per backoffDelay. It returns nil on the first success, the
// wrapped last error on exhaustion, or ctx.Err() if canceled mid-wait.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := backoffDelay(config, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}

// RetryWithCircuitBreaker composes a CircuitBreaker.Execute call around
// Retry so a single breaker execution encompasses every retried attempt,
// matching the shell's "breaker wraps retry" layering in spec.md §4.1 -
// the breaker's failure count advances once per logical call, not once per
// retry attempt.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return cb.Execute(ctx, func() error {
		return Retry(ctx, config, fn)
	})
}
