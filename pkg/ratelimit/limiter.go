package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for local action ceilings
type Limiter interface {
	// Allow reports whether an action may proceed now, consuming capacity if so
	Allow() bool
	// Wait blocks until an action may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset restores full capacity
	Reset()
}

// Steady caps the sustained action rate per hour with a small burst
type Steady struct {
	perHour int
	burst   int
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewSteady creates a limiter allowing perHour actions per hour
func NewSteady(perHour, burst int) *Steady {
	if burst < 1 {
		burst = 1
	}
	return &Steady{
		perHour: perHour,
		burst:   burst,
		limiter: rate.NewLimiter(perHourLimit(perHour), burst),
	}
}

func perHourLimit(perHour int) rate.Limit {
	return rate.Every(time.Hour / time.Duration(perHour))
}

// Allow checks if an action can proceed
func (s *Steady) Allow() bool {
	return s.current().Allow()
}

// Wait blocks until the limiter has a token
func (s *Steady) Wait(ctx context.Context) error {
	return s.current().Wait(ctx)
}

// Reset replaces the limiter with a full one
func (s *Steady) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = rate.NewLimiter(perHourLimit(s.perHour), s.burst)
}

func (s *Steady) current() *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limiter
}

// SlidingWindow allows at most maxRequests actions in any rolling window
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow checks if an action can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}

// Wait blocks until the oldest request leaves the window
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		sw.mu.Lock()
		wait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if d := sw.windowSize - sw.now().Sub(sw.requests[0]); d > 0 {
				wait = d
			}
		}
		sw.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}

// cleanOldRequests drops requests that fell out of the window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		n := copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:n]
	}
}

// Chain applies every limiter in order
type Chain []Limiter

// Allow consumes from each limiter and succeeds only if all allow.
// Capacity taken from earlier limiters is not returned on failure.
func (c Chain) Allow() bool {
	for _, l := range c {
		if !l.Allow() {
			return false
		}
	}
	return true
}

// Wait waits on each limiter in turn
func (c Chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets every limiter
func (c Chain) Reset() {
	for _, l := range c {
		l.Reset()
	}
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

// FromQuota builds the limiter set for a run. Zero values disable each ceiling.
func FromQuota(perHour, burst, windowMax int, windowSize time.Duration) Limiter {
	var chain Chain
	if perHour > 0 {
		chain = append(chain, NewSteady(perHour, burst))
	}
	if windowMax > 0 && windowSize > 0 {
		chain = append(chain, NewSlidingWindow(windowMax, windowSize))
	}

	switch len(chain) {
	case 0:
		return Unlimited{}
	case 1:
		return chain[0]
	default:
		return chain
	}
}
