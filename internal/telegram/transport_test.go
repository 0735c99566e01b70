package telegram

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translate-tg-bot/internal/access"
)

func TestClassifyUpdate(t *testing.T) {
	tests := []struct {
		name    string
		update  tgbotapi.Update
		kind    Kind
		command string
		args    string
	}{
		{"plain text", textUpdate(10, "hello"), KindPlainMessage, "", ""},
		{"blank text", textUpdate(10, "   "), KindIgnored, "", ""},
		{"start", textUpdate(10, "/start"), KindStartCommand, "start", ""},
		{"help", textUpdate(10, "/help"), KindStartCommand, "help", ""},
		{"unknown command", textUpdate(10, "/foo bar"), KindUnknownCommand, "foo", "bar"},
		{"admin command from admin", textUpdate(testAdmin, "/approve 10"), KindAdminCommand, "approve", "10"},
		{"admin command from user", textUpdate(10, "/approve 10"), KindUnknownCommand, "approve", "10"},
		{"mixed case command", textUpdate(testAdmin, "/Ban_User 20"), KindAdminCommand, "ban_user", "20"},
		{"callback", callbackUpdate(testAdmin, "deny_10"), KindDecisionCallback, "", ""},
		{"no message", tgbotapi.Update{UpdateID: 3}, KindIgnored, "", ""},
		{"no sender", tgbotapi.Update{Message: &tgbotapi.Message{Text: "x", Chat: &tgbotapi.Chat{ID: 1}}}, KindIgnored, "", ""},
		{"callback without sender", tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{Data: "approve_1"}}, KindIgnored, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ClassifyUpdate(tt.update, testAdmin)
			assert.Equal(t, tt.kind, ev.Kind, "kind %s", ev.Kind)
			assert.Equal(t, tt.command, ev.Command)
			assert.Equal(t, tt.args, ev.Args)
		})
	}
}

func TestClassifyCallbackActor(t *testing.T) {
	ev := ClassifyUpdate(callbackUpdate(testAdmin, "approve_10"), testAdmin)

	assert.Equal(t, testAdmin, ev.Actor.ID)
	assert.Equal(t, testAdmin, ev.Actor.ChatID)
	assert.Equal(t, "cb-1", ev.CallbackID)
	assert.Equal(t, "approve_10", ev.CallbackData)
}

func TestTransportNotifyAdmin(t *testing.T) {
	sender := &fakeSender{}
	tr := NewTransport(sender, slog.New(slog.NewTextHandler(io.Discard, nil)))

	msgID, err := tr.NotifyAdmin(context.Background(), testAdmin, access.PendingRequest{
		UserID:    42,
		RequestID: "req-1",
		Username:  "bob",
		FirstName: "Bob",
	})
	require.NoError(t, err)
	assert.Equal(t, 1001, msgID)

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, testAdmin, msg.ChatID)
	assert.Contains(t, msg.Text, "@bob (42)")
	assert.Contains(t, msg.Text, "Name: Bob")
	assert.Contains(t, msg.Text, "req-1")

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "approve_42", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "deny_42", *kb.InlineKeyboard[0][1].CallbackData)
}

func TestTransportSendSplitsLongText(t *testing.T) {
	sender := &fakeSender{}
	tr := NewTransport(sender, slog.New(slog.NewTextHandler(io.Discard, nil)))

	text := strings.Repeat("a", maxMessageLength) + "tail"
	require.NoError(t, tr.Send(context.Background(), 5, text))

	assert.Equal(t, []string{strings.Repeat("a", maxMessageLength), "tail"}, sender.textsTo(5))
}

func TestSplitMessage(t *testing.T) {
	t.Run("short text", func(t *testing.T) {
		assert.Equal(t, []string{"hi"}, splitMessage("hi", 10))
	})

	t.Run("prefers newline", func(t *testing.T) {
		assert.Equal(t, []string{"abc\n", "defgh"}, splitMessage("abc\ndefgh", 6))
	})

	t.Run("keeps runes whole", func(t *testing.T) {
		text := strings.Repeat("ü", 10)
		parts := splitMessage(text, 5)

		assert.Equal(t, text, strings.Join(parts, ""))
		for _, p := range parts {
			assert.True(t, utf8.ValidString(p), "part %q", p)
			assert.LessOrEqual(t, len(p), 5)
		}
	})
}

func TestTransportAnswerCallback(t *testing.T) {
	sender := &fakeSender{}
	tr := NewTransport(sender, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, tr.AnswerCallback(context.Background(), "cb-1", "Approved", false))
	require.NoError(t, tr.AnswerCallback(context.Background(), "cb-2", "Try again", true))

	require.Len(t, sender.callbacks, 2)
	assert.Equal(t, "cb-1", sender.callbacks[0].CallbackQueryID)
	assert.False(t, sender.callbacks[0].ShowAlert)
	assert.Equal(t, "Try again", sender.callbacks[1].Text)
	assert.True(t, sender.callbacks[1].ShowAlert)
}
