package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "translate-tg-bot/internal/errors"
)

func TestCommandAndCallbackNormalizeAlike(t *testing.T) {
	tests := []struct {
		command  string
		args     string
		callback string
		expected Decision
	}{
		{"approve", "42", "approve_42", Decision{Action: ActionApprove, TargetID: 42}},
		{"deny", " 42 ", "deny_42", Decision{Action: ActionDeny, TargetID: 42}},
		{"approve", "9007199254740993", "approve_9007199254740993", Decision{Action: ActionApprove, TargetID: 9007199254740993}},
	}

	for _, tt := range tests {
		t.Run(tt.callback, func(t *testing.T) {
			fromCommand, err := ParseCommand(tt.command, tt.args)
			require.NoError(t, err)
			fromCallback, err := ParseCallbackData(tt.callback)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, fromCommand)
			assert.Equal(t, fromCommand, fromCallback)
			assert.Equal(t, tt.callback, fromCallback.CallbackData())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, data := range []string{"", "approve", "approve_", "ban_42", "approve_abc", "deny_-3", "approve_0", "Approve_42"} {
		t.Run(data, func(t *testing.T) {
			_, err := ParseCallbackData(data)
			assert.ErrorIs(t, err, apperrors.ErrInvalidCommand)
		})
	}

	_, err := ParseCommand("approve", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCommand)

	_, err = ParseCommand("approve", "12 34")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCommand)
}
