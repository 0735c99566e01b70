package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "predefined",
			err:      ErrNoSuchRequest,
			expected: ErrNoSuchRequest.UserMsg,
		},
		{
			name:     "wrapped storage error",
			err:      fmt.Errorf("check approved: %w: %w", ErrStorage, errors.New("disk I/O error")),
			expected: ErrStorage.UserMsg,
		},
		{
			name:     "custom wrap",
			err:      Wrap(errors.New("boom"), "custom", false),
			expected: "custom",
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "An unexpected error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetUserMessage(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("translate: %w", ErrTranslationFailed)))
	assert.False(t, IsRetryable(ErrUnauthorized))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWrappedErrorsMatch(t *testing.T) {
	err := fmt.Errorf("approve 42: %w", ErrActorBanned)
	assert.True(t, errors.Is(err, ErrActorBanned))
	assert.False(t, errors.Is(err, ErrStorage))
	assert.Equal(t, "approve 42: actor is banned", err.Error())
}
