package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/ui"
)

var (
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
	quiet      bool
)

// exitError carries a process exit code through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a run error to the process exit status:
// 0 success, 2 rate-limit halt, 1 anything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errs.ErrRateLimitDetected):
		return 2
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "actionpacer",
	Short: "Run paced, rate-limit aware action sequences",
	Long: `actionpacer runs a sequence of actions against targets supplied by a
driver, one at a time, spacing them with a base delay plus random jitter.

  - Transient failures are retried a bounded number of times, then skipped
  - A rate-limit signal halts the run; it is never retried
  - Every successful record is appended to the output file as it happens
  - Interrupted runs can resume from a checkpoint`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetNoColor(noColor)
		ui.SetQuietMode(quiet)
		if cmd.Name() == "run" {
			ui.PrintBanner()
		}
	},
}

// Execute runs the root command and exits with the mapped status
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.actionpacer.yaml or $HOME/.actionpacer.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and the summary")

	rootCmd.SetVersionTemplate(`actionpacer {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the persistent flags that were set explicitly
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return flags
}
