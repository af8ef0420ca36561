// Package retry runs an operation a bounded number of times.
//
// Only transient page errors are retried by default. Rate-limit signals and
// configuration errors return on the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry sleep
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultRetryIf retries only errors whose type is retryable
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsRetryable(errs.TypeOf(err))
}

// Result describes how an operation finished
type Result struct {
	Attempts int
	Err      error
}

// Do executes op with retry logic and reports the number of attempts made.
// When attempts run out the last error is returned wrapped, so errors.Is
// still matches its type.
func Do(ctx context.Context, op Operation, cfg Config) Result {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	if cfg.Backoff == nil {
		cfg.Backoff = &ConstantBackoff{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return Result{Attempts: attempt}
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return Result{Attempts: attempt, Err: err}
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if werr := Wait(ctx, delay); werr != nil {
			return Result{Attempts: attempt, Err: fmt.Errorf("retry cancelled: %w", werr)}
		}
	}

	return Result{
		Attempts: cfg.MaxAttempts,
		Err:      fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr),
	}
}
