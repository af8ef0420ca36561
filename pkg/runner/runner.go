package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"actionpacer/pkg/driver"
	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/logger"
	"actionpacer/pkg/ratelimit"
	"actionpacer/pkg/record"
	"actionpacer/pkg/retry"
)

// Halt reasons reported in Summary.HaltReason
const (
	ReasonLimit     = "limit reached"
	ReasonExhausted = "targets exhausted"
	ReasonRateLimit = "rate limit detected"
	ReasonCancelled = "cancelled"
	ReasonOutput    = "output failure"
	ReasonDriver    = "driver failure"
)

// Pacer supplies inter-action delays
type Pacer interface {
	NextDelay() time.Duration
	WaitDelay(ctx context.Context) (time.Duration, error)
}

// Sink receives successful records
type Sink interface {
	Append(rec *record.Record) error
}

// Options tunes a run
type Options struct {
	// Limit caps successful records; 0 means unlimited
	Limit int
	// MaxAttempts bounds tries per target on transient errors
	MaxAttempts int
	// RequiredAttributes decide whether a written record is complete
	RequiredAttributes []string
}

// State is the run context. It is created by the caller and passed in
// explicitly; nothing about a run lives in package-level variables.
type State struct {
	RunID string
	Seen  record.Seen
}

// NewState creates a run context with a fresh run ID. seen may be nil.
func NewState(seen record.Seen) *State {
	if seen == nil {
		seen = record.NewSeen()
	}
	return &State{RunID: uuid.NewString(), Seen: seen}
}

// Summary is reported at the end of every run, including halted ones
type Summary struct {
	RunID      string
	Processed  int
	Skipped    int
	Errored    int
	Duplicates int
	Incomplete int
	Halted     bool
	HaltReason string
	Elapsed    time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("processed=%d skipped=%d errored=%d duplicates=%d incomplete=%d reason=%q",
		s.Processed, s.Skipped, s.Errored, s.Duplicates, s.Incomplete, s.HaltReason)
}

// Runner executes actions one at a time
type Runner struct {
	driver     driver.Driver
	pacer      Pacer
	limiter    ratelimit.Limiter
	sink       Sink
	opts       Options
	logger     logger.Logger
	checkpoint func(seen record.Seen, s Summary) error
	progress   func(s Summary)
}

// New creates a Runner
func New(d driver.Driver, p Pacer, sink Sink, opts Options, log logger.Logger) *Runner {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{
		driver:  d,
		pacer:   p,
		limiter: ratelimit.Unlimited{},
		sink:    sink,
		opts:    opts,
		logger:  log,
	}
}

// WithLimiter sets a local action ceiling
func (r *Runner) WithLimiter(l ratelimit.Limiter) *Runner {
	if l != nil {
		r.limiter = l
	}
	return r
}

// WithCheckpoint registers fn to persist progress after each target and
// once more when the run stops
func (r *Runner) WithCheckpoint(fn func(seen record.Seen, s Summary) error) *Runner {
	r.checkpoint = fn
	return r
}

// WithProgress registers fn to observe the summary after each target
func (r *Runner) WithProgress(fn func(s Summary)) *Runner {
	r.progress = fn
	return r
}

// Run processes targets until the limit, exhaustion, cancellation or a
// rate-limit signal. Records already appended are never removed. The
// returned Summary is valid even when err is non-nil.
func (r *Runner) Run(ctx context.Context, state *State) (sum Summary, err error) {
	start := time.Now()
	sum.RunID = state.RunID

	log := r.logger.WithField("run_id", state.RunID)
	logger.LogComponentStart(log, "runner", map[string]interface{}{
		"limit":        r.opts.Limit,
		"max_attempts": r.opts.MaxAttempts,
		"seen":         len(state.Seen),
	})

	defer func() {
		sum.Elapsed = time.Since(start)
		if r.checkpoint != nil {
			if cerr := r.checkpoint(state.Seen, sum); cerr != nil {
				log.WithError(cerr).Warn("Failed to save final checkpoint")
			}
		}
		logger.LogComponentStop(log, "runner", sum.HaltReason)
	}()

	halt := func(reason string, cause error) (Summary, error) {
		sum.Halted = true
		sum.HaltReason = reason
		return sum, cause
	}

	iteration := 0
	for {
		if r.opts.Limit > 0 && sum.Processed >= r.opts.Limit {
			sum.HaltReason = ReasonLimit
			return sum, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return halt(ReasonCancelled, cerr)
		}

		target, ok, nerr := r.driver.Next(ctx)
		if nerr != nil {
			if ctx.Err() != nil {
				return halt(ReasonCancelled, ctx.Err())
			}
			return halt(ReasonDriver, fmt.Errorf("fetching next target: %w", nerr))
		}
		if !ok {
			sum.HaltReason = ReasonExhausted
			return sum, nil
		}

		if state.Seen.Has(target.ID) {
			sum.Duplicates++
			log.DebugWithFields("Skipping already seen target", map[string]interface{}{
				"target": target.ID,
			})
			continue
		}

		if werr := r.limiter.Wait(ctx); werr != nil {
			return halt(ReasonCancelled, werr)
		}

		iteration++
		delay, werr := r.pacer.WaitDelay(ctx)
		if werr != nil {
			return halt(ReasonCancelled, werr)
		}
		logger.LogPacing(log, delay, iteration)

		outcome, incomplete, aerr := r.act(ctx, state, target, log)
		switch {
		case aerr == nil:
			if outcome == record.OutcomeSuccess {
				sum.Processed++
			}
			if incomplete {
				sum.Incomplete++
			}
		case errors.Is(aerr, errs.ErrRateLimitDetected):
			log.WithError(aerr).WithField("target", target.ID).Error("Rate limit detected, halting run")
			return halt(ReasonRateLimit, aerr)
		case errors.Is(aerr, context.Canceled), errors.Is(aerr, context.DeadlineExceeded):
			return halt(ReasonCancelled, aerr)
		default:
			log.WithError(aerr).Error("Failed to write record, halting run")
			return halt(ReasonOutput, aerr)
		}

		switch outcome {
		case record.OutcomeSkip:
			sum.Skipped++
		case record.OutcomeError:
			sum.Errored++
		}

		if r.checkpoint != nil {
			if cerr := r.checkpoint(state.Seen, sum); cerr != nil {
				log.WithError(cerr).Warn("Failed to save checkpoint")
			}
		}
		if r.progress != nil {
			r.progress(sum)
		}
	}
}

// act runs one target through bounded retry and writes the record on success.
// A nil error with a skip/error outcome means the run should continue.
func (r *Runner) act(ctx context.Context, state *State, target driver.Target, log logger.Logger) (record.Outcome, bool, error) {
	var attrs record.Attributes
	res := retry.Do(ctx, func(ctx context.Context) error {
		a, err := r.driver.Act(ctx, target)
		attrs = a
		return err
	}, retry.Config{
		MaxAttempts: r.opts.MaxAttempts,
		Backoff:     &retry.PacedBackoff{Pacer: r.pacer},
		Logger:      log.WithField("target", target.ID),
	})

	switch {
	case res.Err == nil:
		rec := record.New(state.RunID, target.ID, record.OutcomeSuccess, res.Attempts)
		rec.Attributes = attrs
		rec.MarkCompleteness(r.opts.RequiredAttributes)
		if err := r.sink.Append(rec); err != nil {
			return record.OutcomeError, false, err
		}
		state.Seen.Add(target.ID)
		if rec.Incomplete {
			log.WarnWithFields("Record is missing required attributes", map[string]interface{}{
				"target":  target.ID,
				"missing": rec.Missing,
			})
		}
		logger.LogAction(log, target.ID, string(record.OutcomeSuccess), res.Attempts, nil)
		return record.OutcomeSuccess, rec.Incomplete, nil

	case errors.Is(res.Err, errs.ErrRateLimitDetected),
		errors.Is(res.Err, context.Canceled),
		errors.Is(res.Err, context.DeadlineExceeded):
		return record.OutcomeError, false, res.Err

	case errors.Is(res.Err, errs.ErrTransientPage):
		// Left out of Seen so a later run can try it again
		logger.LogAction(log, target.ID, string(record.OutcomeSkip), res.Attempts, res.Err)
		return record.OutcomeSkip, false, nil

	default:
		state.Seen.Add(target.ID)
		logger.LogAction(log, target.ID, string(record.OutcomeError), res.Attempts, res.Err)
		return record.OutcomeError, false, nil
	}
}
