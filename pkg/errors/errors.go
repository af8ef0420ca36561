package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the kinds of failure a run can hit
type ErrorType string

const (
	ErrorTypeInvalidConfiguration ErrorType = "invalid_configuration"
	ErrorTypeTransientPage        ErrorType = "transient_page"
	ErrorTypeRateLimitDetected    ErrorType = "rate_limit_detected"
	ErrorTypeOutput               ErrorType = "output"
	ErrorTypeUnknown              ErrorType = "unknown"
)

// Error represents a run error with type information
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so sentinel comparisons work
// through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Type == e.Type
}

// Sentinels for errors.Is checks
var (
	ErrInvalidConfiguration = &Error{Type: ErrorTypeInvalidConfiguration}
	ErrTransientPage        = &Error{Type: ErrorTypeTransientPage}
	ErrRateLimitDetected    = &Error{Type: ErrorTypeRateLimitDetected}
)

// InvalidConfiguration wraps a configuration problem
func InvalidConfiguration(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeInvalidConfiguration, Message: msg, Err: cause}
}

// TransientPage reports a missing element or a load timeout
func TransientPage(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeTransientPage, Message: msg, Err: cause}
}

// RateLimitDetected reports that the remote side signalled a quota
func RateLimitDetected(msg string) *Error {
	return &Error{Type: ErrorTypeRateLimitDetected, Message: msg}
}

// Output wraps a failure to persist a record
func Output(msg string, cause error) *Error {
	return &Error{Type: ErrorTypeOutput, Message: msg, Err: cause}
}

// IsRetryable checks if an error type should be retried.
// Rate limits are never retried.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransientPage:
		return true
	default:
		return false
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}
