// Package driver is the boundary between a run and the layer that actually
// performs actions (a browser session, an API client, a replay file).
//
// A run only needs two things from that layer: the next target to act on,
// and the resulting state after acting on it. Readiness waits belong to the
// driver; the run's pacing delay is only a lower bound between actions.
package driver

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/logger"
	"actionpacer/pkg/record"
)

// Target is one candidate for an action
type Target struct {
	ID         string            `json:"id"`
	Attributes record.Attributes `json:"attributes,omitempty"`
	// Signal simulates remote behavior in replay files; see FileDriver
	Signal string `json:"signal,omitempty"`
}

// Driver produces targets and acts on them
type Driver interface {
	// Next returns the next target, or ok=false when there are no more
	Next(ctx context.Context) (target Target, ok bool, err error)
	// Act performs the action on t and returns the state read back.
	// It returns errors built with the errors package so the run can tell
	// transient failures from rate-limit signals.
	Act(ctx context.Context, t Target) (record.Attributes, error)
	Close() error
}

// Options carries the settings a driver may need from configuration
type Options struct {
	Input        string
	TargetFilter string
	Headless     bool
	SessionFile  string
	Proxy        *url.URL
	Logger       logger.Logger
}

// Factory builds a driver from options
type Factory func(opts Options) (Driver, error)

var factories = map[string]Factory{
	"file": NewFileDriverFromOptions,
}

// New builds the named driver
func New(name string, opts Options) (Driver, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, errs.InvalidConfiguration(fmt.Sprintf("unknown driver %q (available: %s)", name, strings.Join(Names(), ", ")), nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return f(opts)
}

// Names lists the registered drivers
func Names() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MatchesFilter reports whether any attribute value contains filter,
// ignoring case. An empty filter matches everything.
func MatchesFilter(t Target, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	needle := strings.ToLower(filter)
	for _, v := range t.Attributes {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
