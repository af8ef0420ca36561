// Package pacing decides how long to wait between automated actions.
//
// Each delay is a fixed base plus a uniformly distributed jitter drawn from
// an inclusive range, so consecutive actions never form a strictly periodic
// pattern. The delay is a lower bound only: callers still wait on whatever
// readiness signal their own action layer provides.
//
// Usage:
//
//	ctrl, err := pacing.New(pacing.Config{
//	    BaseDelay: 1500 * time.Millisecond,
//	    JitterMin: 0,
//	    JitterMax: time.Second,
//	})
//	if err != nil {
//	    // errors.Is(err, errs.ErrInvalidConfiguration)
//	}
//
//	for _, target := range targets {
//	    if err := ctrl.Wait(ctx); err != nil {
//	        return err
//	    }
//	    act(target)
//	}
package pacing
