// Package runner drives a sequential run: pace, act, record, repeat.
//
// A run is single threaded. Before each action it waits on the local quota
// limiter and then on the pacing delay. Transient failures are retried a
// bounded number of times using the same pacing delay and then skipped. A
// rate-limit signal halts the run immediately; it is never retried.
// Successful records are appended to the sink as they happen, so a halted
// or cancelled run keeps everything it already wrote.
//
// To run several sessions in parallel, start separate processes with their
// own configuration and output files. Runners share nothing.
package runner
