package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogAction logs the outcome of a single action against a target
func LogAction(l Logger, targetID, outcome string, attempts int, err error) {
	entry := l.WithFields(map[string]interface{}{
		"target":   targetID,
		"outcome":  outcome,
		"attempts": attempts,
	})

	switch {
	case err != nil && outcome == "error":
		entry.WithError(err).Error("Action failed")
	case err != nil:
		entry.WithError(err).Warn("Action skipped")
	case outcome == "skip":
		entry.Debug("Action skipped")
	default:
		entry.Info("Action completed")
	}
}

// LogPacing logs the delay chosen before an action
func LogPacing(l Logger, delay time.Duration, iteration int) {
	l.DebugWithFields("Pacing delay", map[string]interface{}{
		"delay_ms":  delay.Milliseconds(),
		"iteration": iteration,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, cfg map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(cfg) > 0 {
		entry = entry.WithFields(cfg)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
