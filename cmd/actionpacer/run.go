package main

import (
	"context"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"actionpacer/pkg/checkpoint"
	"actionpacer/pkg/config"
	"actionpacer/pkg/driver"
	"actionpacer/pkg/logger"
	"actionpacer/pkg/pacing"
	"actionpacer/pkg/ratelimit"
	"actionpacer/pkg/record"
	"actionpacer/pkg/runner"
	"actionpacer/pkg/storage"
	"actionpacer/pkg/ui"
)

var (
	driverName    string
	input         string
	outputPath    string
	outputFormat  string
	limit         int
	maxAttempts   int
	baseDelayMs   int64
	jitterMinMs   int64
	jitterMaxMs   int64
	targetFilter  string
	requiredAttrs []string
	headless      bool
	sessionFile   string
	proxyURL      string
	resumeRun     bool
	forceRestart  bool
	checkpointDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run actions against the driver's targets",
	Long: `Run actions one at a time against the targets produced by a driver.

Before each action the run waits on the configured quota ceilings and then
on the pacing delay (base delay plus jitter). The run stops when the limit
is reached, targets run out, the process is interrupted, or the driver
reports a rate limit. Exit status is 2 for a rate-limit halt.`,
	Example: `  # Replay targets from a file with default pacing
  actionpacer run --input targets.jsonl

  # At most 10 records, 2s base delay with 0-500ms jitter
  actionpacer run --input targets.jsonl --limit 10 --base-delay-ms 2000 --jitter-max-ms 500

  # Resume a previous run into the same output file
  actionpacer run --input targets.jsonl --output out.jsonl --resume`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, runFlags(cmd))
		if err != nil {
			ui.PrintError("Invalid configuration", err)
			return &exitError{code: 1, err: err}
		}

		if err := logger.Initialize(&cfg.Logging); err != nil {
			ui.PrintError("Failed to initialize logger", err)
			return &exitError{code: 1, err: err}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sum, err := execute(ctx, cfg, runSettings{
			driver:        driverName,
			resume:        resumeRun,
			forceRestart:  forceRestart,
			checkpointDir: checkpointDir,
			progress:      true,
		}, logger.GetLogger())

		if sum.RunID != "" {
			ui.PrintSummary(sum, cfg.Output.Path)
		}
		if err != nil {
			ui.PrintError("Run stopped", err)
			return &exitError{code: exitCode(err), err: err}
		}
		ui.PrintSuccess("[RUN COMPLETE]")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&driverName, "driver", "file", "driver that supplies and acts on targets")
	f.StringVarP(&input, "input", "i", "", "driver input (for the file driver: JSONL targets)")
	f.StringVarP(&outputPath, "output", "o", "", "output file for records")
	f.StringVar(&outputFormat, "format", "", "output format (jsonl, csv)")
	f.IntVarP(&limit, "limit", "n", 0, "maximum successful records (0 = unlimited)")
	f.IntVar(&maxAttempts, "max-attempts", 0, "attempts per target on transient errors")
	f.Int64Var(&baseDelayMs, "base-delay-ms", 0, "fixed delay before each action")
	f.Int64Var(&jitterMinMs, "jitter-min-ms", 0, "lower bound of random jitter")
	f.Int64Var(&jitterMaxMs, "jitter-max-ms", 0, "upper bound of random jitter")
	f.StringVar(&targetFilter, "target-filter", "", "only act on targets with an attribute containing this text")
	f.StringSliceVar(&requiredAttrs, "required-attributes", nil, "attributes a record needs to count as complete (default: name)")
	f.BoolVar(&headless, "headless", true, "ask the driver to run without a visible UI")
	f.StringVar(&sessionFile, "session-file", "", "session file handed to the driver")
	f.StringVar(&proxyURL, "proxy", "", "proxy URL handed to the driver (scheme://[user:pass@]host:port)")
	f.BoolVar(&resumeRun, "resume", false, "skip targets recorded in the last checkpoint")
	f.BoolVar(&forceRestart, "force-restart", false, "delete any existing checkpoint first")
	f.StringVar(&checkpointDir, "checkpoint-dir", "", "directory for checkpoints (default: user data dir)")
}

// runFlags collects the flags the user actually set, so unset flags do not
// override file or environment values
func runFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	set := cmd.Flags().Changed

	if set("base-delay-ms") {
		flags["base-delay-ms"] = baseDelayMs
	}
	if set("jitter-min-ms") {
		flags["jitter-min-ms"] = jitterMinMs
	}
	if set("jitter-max-ms") {
		flags["jitter-max-ms"] = jitterMaxMs
	}
	if set("limit") {
		flags["limit"] = limit
	}
	if set("max-attempts") {
		flags["max-attempts"] = maxAttempts
	}
	if set("target-filter") {
		flags["target-filter"] = targetFilter
	}
	if set("required-attributes") {
		flags["required-attributes"] = requiredAttrs
	}
	if set("headless") {
		flags["headless"] = headless
	}
	if set("session-file") {
		flags["session-file"] = sessionFile
	}
	if set("proxy") {
		flags["proxy"] = proxyURL
	}
	if set("input") {
		flags["input"] = input
	}
	if set("output") {
		flags["output"] = outputPath
	}
	if set("format") {
		flags["format"] = outputFormat
	}
	return flags
}

type runSettings struct {
	driver        string
	resume        bool
	forceRestart  bool
	checkpointDir string
	progress      bool
}

// execute wires a validated configuration into a runner and runs it
func execute(ctx context.Context, cfg *config.Config, rs runSettings, log logger.Logger) (runner.Summary, error) {
	ctrl, err := pacing.New(cfg.Pacing.Controller())
	if err != nil {
		return runner.Summary{}, err
	}

	var proxy *url.URL
	if cfg.Proxy.URL != "" {
		if proxy, err = config.ParseProxyURL(cfg.Proxy.URL); err != nil {
			return runner.Summary{}, err
		}
	}

	drv, err := driver.New(rs.driver, driver.Options{
		Input:        cfg.Run.Input,
		TargetFilter: cfg.Run.TargetFilter,
		Headless:     cfg.Run.Headless,
		SessionFile:  cfg.Run.SessionFile,
		Proxy:        proxy,
		Logger:       log,
	})
	if err != nil {
		return runner.Summary{}, err
	}
	defer drv.Close()

	sink, err := storage.Open(cfg.Output.Path, storage.Format(cfg.Output.Format))
	if err != nil {
		return runner.Summary{}, err
	}
	defer sink.Close()

	var cpm *checkpoint.Manager
	if rs.checkpointDir != "" {
		cpm, err = checkpoint.NewManagerAt(rs.checkpointDir, cfg.Output.Path, log)
	} else {
		cpm, err = checkpoint.NewManager(cfg.Output.Path, log)
	}
	if err != nil {
		return runner.Summary{}, err
	}

	cp, state, err := prepareCheckpoint(cpm, checkpoint.KeyFor(cfg.Output.Path), rs, log)
	if err != nil {
		return runner.Summary{}, err
	}

	log.InfoWithFields("Run starting", map[string]interface{}{
		"run_id":        state.RunID,
		"driver":        rs.driver,
		"output":        sink.Path(),
		"existing":      sink.Count(),
		"base_delay_ms": cfg.Pacing.BaseDelayMs,
		"jitter_ms":     fmt.Sprintf("%d-%d", cfg.Pacing.JitterMinMs, cfg.Pacing.JitterMaxMs),
		"proxy":         config.RedactProxyURL(cfg.Proxy.URL),
	})

	r := runner.New(drv, ctrl, sink, runner.Options{
		Limit:              cfg.Run.Limit,
		MaxAttempts:        cfg.Run.MaxAttempts,
		RequiredAttributes: cfg.Run.RequiredAttributes,
	}, log).
		WithLimiter(ratelimit.FromQuota(cfg.Quota.ActionsPerHour, cfg.Quota.Burst, cfg.Quota.WindowMax, cfg.Quota.WindowSize)).
		WithCheckpoint(func(seen record.Seen, s runner.Summary) error {
			return cpm.Record(cp, seen, s.Processed, s.Skipped, s.Errored)
		})

	if rs.progress {
		tracker := ui.NewStatusTracker(cfg.Run.Limit)
		r = r.WithProgress(tracker.Update)
	}

	return r.Run(ctx, state)
}

// prepareCheckpoint loads the previous seen set when resuming and saves the
// new run's checkpoint with it before any action is taken
func prepareCheckpoint(cpm *checkpoint.Manager, key string, rs runSettings, log logger.Logger) (*checkpoint.Checkpoint, *runner.State, error) {
	if rs.forceRestart {
		if err := cpm.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete existing checkpoint")
		}
	}

	var seen record.Seen
	switch {
	case rs.resume:
		prev, err := cpm.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("loading checkpoint: %w", err)
		}
		if prev != nil {
			seen = prev.SeenSet()
			ui.PrintInfo("Resuming", fmt.Sprintf("%d targets already handled", len(seen)))
		}
	case cpm.Exists():
		ui.PrintWarning("Existing checkpoint ignored and replaced (use --resume to continue it)", cpm.Path())
	}

	state := runner.NewState(seen)
	cp, err := cpm.Create(key, state.RunID, state.Seen)
	if err != nil {
		return nil, nil, err
	}
	return cp, state, nil
}
