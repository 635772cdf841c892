package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with linear backoff.
type RetryConfig struct {
	// Retries is the number of retries after the first attempt fails.
	// Total tries = Retries + 1. A value of 0 means a single attempt.
	Retries int

	// Delay is the base wait before the first retry. The wait before retry
	// i (1-indexed) is Delay * i; no jitter, no cap.
	Delay time.Duration

	// ShouldRetry decides whether an error is worth retrying. If nil, every
	// error is retried.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with the 1-indexed retry
	// number and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration used for analysis calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Retries: 2,
		Delay:   2 * time.Second,
	}
}

// Do executes fn, retrying per cfg. After exhausting retries the error from
// the final attempt is returned. Waits respect context cancellation.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, nil)
	return err
}

// DoVal executes fn returning a value, retrying per cfg. A non-nil validate
// is applied to each successful value; a validation error counts as a failed
// attempt and is retried like any other. The predicate stays independent of
// both the retry loop and fn's own error signaling.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error), validate func(T) error) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		val, err := fn(ctx)
		if err == nil && validate != nil {
			err = validate(val)
		}
		if err == nil {
			return val, nil
		}
		lastErr = err

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, lastErr
		}

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(lastErr) {
			return zero, lastErr
		}

		// Don't sleep after the last attempt.
		if attempt == cfg.Retries {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(cfg.Delay * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return cfg
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
