// Package record defines the per-action record written by a run.
package record

import (
	"strings"
	"time"
)

// Outcome is the result of one action
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkip    Outcome = "skip"
	OutcomeError   Outcome = "error"
)

// Attributes are the opaque key/value pairs read back from a target
type Attributes map[string]string

// Missing returns the names in required that are absent or blank, in order
func (a Attributes) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(a[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Record is one attempt to act on a target
type Record struct {
	RunID      string     `json:"run_id"`
	TargetID   string     `json:"target_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Outcome    Outcome    `json:"outcome"`
	Attempts   int        `json:"attempts"`
	Incomplete bool       `json:"incomplete"`
	Missing    []string   `json:"missing,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// New creates a record stamped with the current UTC time
func New(runID, targetID string, outcome Outcome, attempts int) *Record {
	return &Record{
		RunID:     runID,
		TargetID:  targetID,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
		Attempts:  attempts,
	}
}

// MarkCompleteness flags the record incomplete when any required attribute
// is missing. Incomplete records are still written.
func (r *Record) MarkCompleteness(required []string) *Record {
	r.Missing = r.Attributes.Missing(required)
	r.Incomplete = len(r.Missing) > 0
	return r
}
