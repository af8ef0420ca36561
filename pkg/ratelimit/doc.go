// Package ratelimit provides local ceilings on how many actions a run may
// perform over time.
//
// Remote quotas are not known precisely, so these ceilings are operator
// assumptions supplied through configuration. A run never retries against
// a remote limit; it uses these limiters to stay under its own budget.
//
// Implementations:
//
//   - Steady: sustained actions per hour with a small burst (x/time/rate)
//   - SlidingWindow: at most N actions in any rolling window
//   - Chain: every limiter in the chain must allow
//   - Unlimited: no ceiling
//
// Usage:
//
//	lim := ratelimit.FromQuota(cfg.Quota.ActionsPerHour, cfg.Quota.Burst,
//	    cfg.Quota.WindowMax, cfg.Quota.WindowSize)
//	if err := lim.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
