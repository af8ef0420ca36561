package driver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/logger"
	"actionpacer/pkg/record"
)

const maxLineSize = 1 << 20

// FileDriver replays targets from JSON lines:
//
//	{"id": "t-1", "attributes": {"name": "Ana", "city": "Porto"}}
//	{"id": "t-2", "signal": "transient:2"}
//	{"id": "t-3", "signal": "rate_limit"}
//
// Signals: "transient[:n]" fails the first n acts (default: every act),
// "rate_limit" reports a remote quota, "error" fails permanently.
type FileDriver struct {
	scanner  *bufio.Scanner
	closer   io.Closer
	filter   string
	logger   logger.Logger
	line     int
	failures map[string]int
}

// NewFileDriver reads targets from r
func NewFileDriver(r io.Reader, filter string, log logger.Logger) *FileDriver {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if log == nil {
		log = logger.NewNopLogger()
	}
	d := &FileDriver{
		scanner:  scanner,
		filter:   filter,
		logger:   log,
		failures: make(map[string]int),
	}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	return d
}

// NewFileDriverFromOptions opens opts.Input
func NewFileDriverFromOptions(opts Options) (Driver, error) {
	if opts.Input == "" {
		return nil, errs.InvalidConfiguration("file driver needs an input path", nil)
	}
	f, err := os.Open(opts.Input)
	if err != nil {
		return nil, errs.InvalidConfiguration("cannot open driver input", err)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}

	if opts.Proxy != nil || opts.SessionFile != "" {
		opts.Logger.DebugWithFields("File driver ignores browser settings", map[string]interface{}{
			"headless":     opts.Headless,
			"session_file": opts.SessionFile,
		})
	}
	return NewFileDriver(f, opts.TargetFilter, opts.Logger), nil
}

// Next returns the next well-formed target that matches the filter
func (d *FileDriver) Next(ctx context.Context) (Target, bool, error) {
	for d.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Target{}, false, err
		}
		d.line++

		raw := strings.TrimSpace(d.scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var t Target
		if err := json.Unmarshal([]byte(raw), &t); err != nil || t.ID == "" {
			d.logger.WarnWithFields("Skipping malformed input line", map[string]interface{}{
				"line": d.line,
			})
			continue
		}
		if !MatchesFilter(t, d.filter) {
			continue
		}
		return t, true, nil
	}

	if err := d.scanner.Err(); err != nil {
		return Target{}, false, fmt.Errorf("reading driver input: %w", err)
	}
	return Target{}, false, nil
}

// Act replays the target's signal, or returns its attributes
func (d *FileDriver) Act(ctx context.Context, t Target) (record.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind, arg, _ := strings.Cut(t.Signal, ":")
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "":
	case "transient":
		limit := -1
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("bad transient count %q for %s", arg, t.ID)
			}
			limit = n
		}
		if limit < 0 || d.failures[t.ID] < limit {
			d.failures[t.ID]++
			return nil, errs.TransientPage("element not ready", nil)
		}
	case "rate_limit":
		return nil, errs.RateLimitDetected("remote reported a usage limit")
	case "error":
		return nil, errors.New("action rejected")
	default:
		return nil, fmt.Errorf("unknown signal %q for %s", t.Signal, t.ID)
	}

	out := make(record.Attributes, len(t.Attributes))
	for k, v := range t.Attributes {
		out[k] = v
	}
	return out, nil
}

// Close closes the underlying input if it is closable
func (d *FileDriver) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
