// Package retry runs an operation a bounded number of times with exponential
// backoff. It exists for idempotent calls against the remote knowledge-base
// API; anything non-idempotent must not go through it.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// RetryableErrors limits retries to matching errors. Empty means every
	// error is retried.
	RetryableErrors []error
	Logger          *zap.Logger
}

func (cfg *Config) normalize() {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
}

// Do runs operation until it succeeds, the attempts run out, or the context
// is cancelled. The last error is returned when all attempts fail.
func Do(ctx context.Context, cfg Config, operation func() error) error {
	cfg.normalize()

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.Info("Succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !cfg.shouldRetry(lastErr) || attempt >= cfg.MaxAttempts {
			return lastErr
		}

		if cfg.Logger != nil {
			cfg.Logger.Warn("Attempt failed, backing off",
				zap.Error(lastErr),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.MaxAttempts),
				zap.Duration("delay", delay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered(delay, cfg.JitterFraction)):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

func (cfg *Config) shouldRetry(err error) bool {
	if len(cfg.RetryableErrors) == 0 {
		return true
	}
	for _, candidate := range cfg.RetryableErrors {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

// jittered spreads the delay by up to +/- fraction so synchronized callers
// don't hammer the remote in lockstep.
func jittered(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * fraction
	return d + time.Duration(float64(d)*spread)
}
