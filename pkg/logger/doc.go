// Package logger provides structured logging for actionpacer.
//
// It wraps zerolog behind a small interface so packages can accept a
// Logger and tests can swap in a TestLogger that captures messages.
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//	logger.GetLogger().WithField("run_id", id).Info("Run started")
//
// When a log file is configured, console output stays human readable and
// the file receives JSON lines.
package logger
