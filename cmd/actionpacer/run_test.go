package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actionpacer/pkg/checkpoint"
	"actionpacer/pkg/config"
	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/logger"
	"actionpacer/pkg/record"
	"actionpacer/pkg/runner"
)

func writeTargets(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func testConfig(t *testing.T, input string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Pacing.BaseDelayMs = 1
	cfg.Pacing.JitterMinMs = 0
	cfg.Pacing.JitterMaxMs = 1
	cfg.Run.Input = input
	cfg.Output.Path = filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, cfg.Validate())
	return cfg
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	s := bufio.NewScanner(f)
	for s.Scan() {
		n++
	}
	require.NoError(t, s.Err())
	return n
}

func targets(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf(`{"id": "t-%d", "attributes": {"name": "n%d"}}`, i, i)
	}
	return lines
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 2, exitCode(errs.RateLimitDetected("quota")))
	assert.Equal(t, 2, exitCode(fmt.Errorf("run: %w", errs.RateLimitDetected("quota"))))
	assert.Equal(t, 1, exitCode(errs.InvalidConfiguration("bad", nil)))
	assert.Equal(t, 1, exitCode(errors.New("disk full")))
}

func TestExecuteRespectsLimit(t *testing.T) {
	cfg := testConfig(t, writeTargets(t, targets(15)...))
	cfg.Run.Limit = 10

	sum, err := execute(context.Background(), cfg, runSettings{driver: "file", checkpointDir: t.TempDir()}, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 10, sum.Processed)
	assert.Equal(t, runner.ReasonLimit, sum.HaltReason)
	assert.Equal(t, 10, countLines(t, cfg.Output.Path))
}

func TestExecuteHaltsOnRateLimit(t *testing.T) {
	lines := append(targets(3), `{"id": "limited", "signal": "rate_limit"}`, `{"id": "after"}`)
	cfg := testConfig(t, writeTargets(t, lines...))

	sum, err := execute(context.Background(), cfg, runSettings{driver: "file", checkpointDir: t.TempDir()}, logger.NewNopLogger())
	require.Error(t, err)

	assert.Equal(t, 2, exitCode(err))
	assert.True(t, sum.Halted)
	assert.Equal(t, runner.ReasonRateLimit, sum.HaltReason)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 3, countLines(t, cfg.Output.Path))
}

func TestExecuteResumeSkipsSeenTargets(t *testing.T) {
	cfg := testConfig(t, writeTargets(t, targets(4)...))
	cpDir := t.TempDir()
	rs := runSettings{driver: "file", checkpointDir: cpDir}

	first, err := execute(context.Background(), cfg, rs, logger.NewNopLogger())
	require.NoError(t, err)
	require.Equal(t, 4, first.Processed)

	rs.resume = true
	second, err := execute(context.Background(), cfg, rs, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 4, second.Duplicates)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 4, countLines(t, cfg.Output.Path))
}

func TestExecuteForceRestartIgnoresCheckpoint(t *testing.T) {
	cfg := testConfig(t, writeTargets(t, targets(2)...))
	rs := runSettings{driver: "file", checkpointDir: t.TempDir()}

	_, err := execute(context.Background(), cfg, rs, logger.NewNopLogger())
	require.NoError(t, err)

	rs.resume = true
	rs.forceRestart = true
	sum, err := execute(context.Background(), cfg, rs, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 4, countLines(t, cfg.Output.Path))
}

func TestExecuteUnknownDriver(t *testing.T) {
	cfg := testConfig(t, writeTargets(t, targets(1)...))

	_, err := execute(context.Background(), cfg, runSettings{driver: "chrome", checkpointDir: t.TempDir()}, logger.NewNopLogger())
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestExecuteCancelledContext(t *testing.T) {
	cfg := testConfig(t, writeTargets(t, targets(3)...))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := execute(ctx, cfg, runSettings{driver: "file", checkpointDir: t.TempDir()}, logger.NewNopLogger())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, runner.ReasonCancelled, sum.HaltReason)
	assert.Equal(t, 0, sum.Processed)
}

func TestPrepareCheckpointPersistsInheritedSeen(t *testing.T) {
	cpm, err := checkpoint.NewManagerAt(t.TempDir(), "records.jsonl", nil)
	require.NoError(t, err)

	prev, err := cpm.Create("records.jsonl", "run-1", nil)
	require.NoError(t, err)
	require.NoError(t, cpm.Record(prev, record.NewSeen("t-0", "t-1", "t-2"), 3, 0, 0))

	// Nothing runs after prepareCheckpoint here, as if the process were
	// killed before the first action
	_, state, err := prepareCheckpoint(cpm, "records.jsonl", runSettings{resume: true}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.True(t, state.Seen.Has("t-1"))

	onDisk, err := cpm.Load()
	require.NoError(t, err)
	require.NotNil(t, onDisk)
	assert.Equal(t, state.RunID, onDisk.RunID)
	assert.Equal(t, []string{"t-0", "t-1", "t-2"}, onDisk.Seen)
}

func TestPrepareCheckpointWithoutResumeStartsEmpty(t *testing.T) {
	cpm, err := checkpoint.NewManagerAt(t.TempDir(), "records.jsonl", nil)
	require.NoError(t, err)

	prev, err := cpm.Create("records.jsonl", "run-1", nil)
	require.NoError(t, err)
	require.NoError(t, cpm.Record(prev, record.NewSeen("t-0"), 1, 0, 0))

	_, state, err := prepareCheckpoint(cpm, "records.jsonl", runSettings{}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Empty(t, state.Seen)

	onDisk, err := cpm.Load()
	require.NoError(t, err)
	assert.Empty(t, onDisk.Seen)
}

func TestExecuteWritesCompletenessFlag(t *testing.T) {
	cfg := testConfig(t, writeTargets(t, `{"id": "a", "attributes": {"name": "Ana"}}`, `{"id": "b", "attributes": {"city": "Porto"}}`))

	sum, err := execute(context.Background(), cfg, runSettings{driver: "file", checkpointDir: t.TempDir()}, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Incomplete)
}
