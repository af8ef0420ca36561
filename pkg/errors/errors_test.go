package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected bool
	}{
		{ErrorTypeTransientPage, true},
		{ErrorTypeRateLimitDetected, false},
		{ErrorTypeInvalidConfiguration, false},
		{ErrorTypeOutput, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.errType))
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("acting on target: %w", RateLimitDetected("daily quota reached"))

	assert.True(t, stderrors.Is(err, ErrRateLimitDetected))
	assert.False(t, stderrors.Is(err, ErrTransientPage))
	assert.Equal(t, ErrorTypeRateLimitDetected, TypeOf(err))
}

func TestErrorMessage(t *testing.T) {
	cause := stderrors.New("element not found")
	err := TransientPage("card not ready", cause)

	assert.Equal(t, "transient_page error: card not ready: element not found", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(cause))
}
