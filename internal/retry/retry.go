package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Sleep waits between attempts; nil uses a timer. Tests swap it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before every backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig retries twice, after 0.5s and 1s.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Default: assume retryable for unknown errors
	return true
}

// CalculateDelay calculates exponential backoff delay
func CalculateDelay(attempt int, config *Config) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(2, float64(attempt)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// Retry executes fn until it succeeds, fails permanently, the budget runs out
// or ctx is done. A done ctx always wins and is returned as ctx.Err().
func Retry(ctx context.Context, config *Config, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultConfig()
	}
	sleep := config.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateDelay(attempt-1, config)
			if config.OnRetry != nil {
				config.OnRetry(attempt, delay, lastErr)
			}
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
