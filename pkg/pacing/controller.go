package pacing

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	errs "actionpacer/pkg/errors"
)

// Config holds the static pacing parameters for a run
type Config struct {
	// BaseDelay is the fixed part of every delay; must be positive
	BaseDelay time.Duration
	// JitterMin and JitterMax bound the random part, both inclusive
	JitterMin time.Duration
	JitterMax time.Duration
}

// MaxMillis is the largest millisecond value a time.Duration can hold
const MaxMillis = math.MaxInt64 / int64(time.Millisecond)

// Validate checks the pacing parameters
func (c Config) Validate() error {
	if c.BaseDelay <= 0 {
		return errs.InvalidConfiguration(fmt.Sprintf("base delay must be positive, got %v", c.BaseDelay), nil)
	}
	if c.JitterMin < 0 {
		return errs.InvalidConfiguration(fmt.Sprintf("jitter min cannot be negative, got %v", c.JitterMin), nil)
	}
	if c.JitterMax < c.JitterMin {
		return errs.InvalidConfiguration(fmt.Sprintf("jitter max (%v) is below jitter min (%v)", c.JitterMax, c.JitterMin), nil)
	}
	// base+max must not wrap, or a delay could come out below base
	if c.BaseDelay > math.MaxInt64-c.JitterMax {
		return errs.InvalidConfiguration(fmt.Sprintf("base delay (%v) plus jitter max (%v) overflows", c.BaseDelay, c.JitterMax), nil)
	}
	return nil
}

// ValidateMillis checks millisecond values before they are converted, so a
// value too large for a time.Duration is rejected rather than wrapped
func ValidateMillis(baseMs, jitterMinMs, jitterMaxMs int64) error {
	for _, v := range []struct {
		name string
		ms   int64
	}{
		{"base delay", baseMs},
		{"jitter min", jitterMinMs},
		{"jitter max", jitterMaxMs},
	} {
		if v.ms > MaxMillis {
			return errs.InvalidConfiguration(fmt.Sprintf("%s of %dms exceeds %dms", v.name, v.ms, MaxMillis), nil)
		}
	}
	return FromMillis(baseMs, jitterMinMs, jitterMaxMs).Validate()
}

// FromMillis builds a Config from millisecond values. Values above
// MaxMillis wrap; check them with ValidateMillis first.
func FromMillis(baseMs, jitterMinMs, jitterMaxMs int64) Config {
	return Config{
		BaseDelay: time.Duration(baseMs) * time.Millisecond,
		JitterMin: time.Duration(jitterMinMs) * time.Millisecond,
		JitterMax: time.Duration(jitterMaxMs) * time.Millisecond,
	}
}

// Controller produces inter-action delays.
// It is safe for concurrent use, though a run only calls it from one goroutine.
type Controller struct {
	cfg Config
	rng *rand.Rand
	mu  sync.Mutex
}

// New creates a Controller seeded from the current time
func New(cfg Config) (*Controller, error) {
	return NewWithSource(cfg, rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource creates a Controller drawing jitter from src
func NewWithSource(cfg Config, src rand.Source) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg: cfg,
		rng: rand.New(src),
	}, nil
}

// Config returns the controller's configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// NextDelay returns BaseDelay plus a jitter drawn uniformly from
// [JitterMin, JitterMax]. The result is never below BaseDelay+JitterMin.
func (c *Controller) NextDelay() time.Duration {
	span := int64(c.cfg.JitterMax - c.cfg.JitterMin)

	var jitter int64
	if span > 0 {
		c.mu.Lock()
		// +1 makes the upper bound inclusive
		jitter = c.rng.Int63n(span + 1)
		c.mu.Unlock()
	}

	return c.cfg.BaseDelay + c.cfg.JitterMin + time.Duration(jitter)
}

// Wait sleeps for NextDelay, returning early if ctx is done
func (c *Controller) Wait(ctx context.Context) error {
	_, err := c.WaitDelay(ctx)
	return err
}

// WaitDelay is Wait that also reports the delay it chose
func (c *Controller) WaitDelay(ctx context.Context) (time.Duration, error) {
	delay := c.NextDelay()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return delay, ctx.Err()
	case <-timer.C:
		return delay, nil
	}
}
