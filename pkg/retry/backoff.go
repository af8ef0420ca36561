package retry

import (
	"context"
	"time"
)

// BackoffStrategy decides how long to wait before a retry
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// Pacer is the part of pacing.Controller a backoff needs
type Pacer interface {
	NextDelay() time.Duration
}

// PacedBackoff retries with the run's own pacing delay, so a retry looks
// like any other action to the remote side. Each retry draws a fresh delay
// from the same base-plus-jitter distribution; it does not repeat the exact
// delay that preceded the failed attempt.
type PacedBackoff struct {
	Pacer Pacer
}

// NextDelay draws a fresh pacing delay; the attempt number is ignored
func (pb *PacedBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return pb.Pacer.NextDelay()
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
