package ui

import (
	"fmt"
	"strings"
	"time"

	"actionpacer/pkg/runner"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker renders run progress on one terminal line
type StatusTracker struct {
	Limit     int
	StartTime time.Time
	last      runner.Summary
}

// NewStatusTracker creates a tracker; limit 0 means unbounded
func NewStatusTracker(limit int) *StatusTracker {
	return &StatusTracker{Limit: limit, StartTime: time.Now()}
}

// Update records the latest summary and redraws the progress line
func (st *StatusTracker) Update(s runner.Summary) {
	st.last = s
	if quietMode {
		return
	}
	fmt.Fprintf(Output, "\r%s %s", Green("[PROGRESS]"), st.Line())
}

// Bar returns the progress bar against the limit, or an empty string when unbounded
func (st *StatusTracker) Bar() string {
	if st.Limit <= 0 {
		return ""
	}
	filled := st.last.Processed * barWidth / st.Limit
	if filled > barWidth {
		filled = barWidth
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, barWidth-filled),
		st.last.Processed, st.Limit)
}

// Line returns the full progress line
func (st *StatusTracker) Line() string {
	parts := []string{}
	if bar := st.Bar(); bar != "" {
		parts = append(parts, bar)
	}
	parts = append(parts,
		fmt.Sprintf("ok:%d skip:%d err:%d", st.last.Processed, st.last.Skipped, st.last.Errored),
		fmt.Sprintf("%.1f/min", st.Rate()),
	)
	return strings.Join(parts, " | ")
}

// Rate returns successful actions per minute since the tracker started
func (st *StatusTracker) Rate() float64 {
	elapsed := time.Since(st.StartTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.last.Processed) / elapsed
}

// PrintSummary prints the end-of-run summary; it is shown even in quiet mode
func PrintSummary(s runner.Summary, outputPath string) {
	fmt.Fprintln(Output)
	fmt.Fprintln(Output, Magenta("[RUN SUMMARY]"))
	fmt.Fprintf(Output, "  %s %s\n", Cyan("run id:    "), s.RunID)
	fmt.Fprintf(Output, "  %s %d\n", Cyan("processed: "), s.Processed)
	fmt.Fprintf(Output, "  %s %d\n", Cyan("skipped:   "), s.Skipped)
	fmt.Fprintf(Output, "  %s %d\n", Cyan("errored:   "), s.Errored)
	fmt.Fprintf(Output, "  %s %d\n", Cyan("duplicates:"), s.Duplicates)
	fmt.Fprintf(Output, "  %s %d\n", Cyan("incomplete:"), s.Incomplete)
	fmt.Fprintf(Output, "  %s %s\n", Cyan("elapsed:   "), s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(Output, "  %s %s\n", Cyan("output:    "), outputPath)

	reason := s.HaltReason
	if s.Halted {
		fmt.Fprintf(Output, "  %s %s\n", Cyan("stopped:   "), Red(reason))
	} else {
		fmt.Fprintf(Output, "  %s %s\n", Cyan("stopped:   "), Green(reason))
	}
}
