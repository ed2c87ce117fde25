// Package retry runs an operation with exponential backoff for transient
// failures, respecting context cancellation.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds backoff parameters.
type Config struct {
	// MaxAttempts counts the initial attempt too.
	MaxAttempts int

	// InitialDelay is the pause after the first failure; each further pause
	// is multiplied by Multiplier up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig retries three times with a 100ms starting delay.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2.0,
}

// IsRetryable reports whether a failure is worth retrying.
type IsRetryable func(error) bool

// Do runs fn until it succeeds, fails permanently, exhausts the attempt
// budget, or the context ends.
func Do[T any](ctx context.Context, config Config, isRetryable IsRetryable, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * config.Multiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// WithDefaults runs fn with DefaultConfig.
func WithDefaults[T any](ctx context.Context, isRetryable IsRetryable, fn func() (T, error)) (T, error) {
	return Do(ctx, DefaultConfig, isRetryable, fn)
}
