package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"translate-tg-bot/internal/access"
	"translate-tg-bot/internal/approval"
)

// Telegram rejects longer message texts
const maxMessageLength = 4096

// Sender is the subset of *tgbotapi.BotAPI used for outbound traffic
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Transport sends replies, admin notifications and callback answers
type Transport struct {
	api    Sender
	logger *slog.Logger
}

// NewTransport creates a new outbound transport
func NewTransport(api Sender, logger *slog.Logger) *Transport {
	return &Transport{
		api:    api,
		logger: logger,
	}
}

// Send delivers text to a chat, split into several messages when too long
func (t *Transport) Send(ctx context.Context, chatID int64, text string) error {
	parts := splitMessage(text, maxMessageLength)
	if len(parts) > 1 {
		t.logger.Debug("splitting long message", "chat_id", chatID, "length", len(text), "parts", len(parts))
	}

	for i, part := range parts {
		if _, err := t.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			if i > 0 {
				t.logger.Warn("message delivered partially", "chat_id", chatID, "sent_parts", i, "parts", len(parts))
			}
			return fmt.Errorf("send message to %d: %w", chatID, err)
		}
	}
	return nil
}

// NotifyAdmin announces a pending request with inline approve/deny buttons
func (t *Transport) NotifyAdmin(ctx context.Context, adminID int64, req access.PendingRequest) (int, error) {
	approve := approval.Decision{Action: approval.ActionApprove, TargetID: req.UserID}
	deny := approval.Decision{Action: approval.ActionDeny, TargetID: req.UserID}

	msg := tgbotapi.NewMessage(adminID, adminNotificationText(req))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", approve.CallbackData()),
			tgbotapi.NewInlineKeyboardButtonData("Deny", deny.CallbackData()),
		),
	)

	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("notify admin: %w", err)
	}
	return sent.MessageID, nil
}

// CloseRequest replaces an announcement's text, dropping its buttons
func (t *Transport) CloseRequest(ctx context.Context, adminID int64, msgID int, text string) error {
	if _, err := t.api.Request(tgbotapi.NewEditMessageText(adminID, msgID, text)); err != nil {
		return fmt.Errorf("edit admin message %d: %w", msgID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press so the client stops waiting.
// With alert the text is shown as a dialog instead of a toast.
func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	answer := tgbotapi.NewCallback(callbackID, text)
	if alert {
		answer = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := t.api.Request(answer); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// Typing shows the typing indicator in a chat
func (t *Transport) Typing(ctx context.Context, chatID int64) error {
	if _, err := t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

func adminNotificationText(req access.PendingRequest) string {
	var b strings.Builder
	b.WriteString("New access request\n\n")
	fmt.Fprintf(&b, "User: %s\n", approval.DescribeRequest(req))
	if req.FirstName != "" && req.Username != "" {
		fmt.Fprintf(&b, "Name: %s\n", req.FirstName)
	}
	fmt.Fprintf(&b, "Request: %s\n\n", req.RequestID)
	fmt.Fprintf(&b, "Use the buttons below, or /approve %d or /deny %d.", req.UserID, req.UserID)
	return b.String()
}

// splitMessage cuts text into chunks of at most limit bytes without
// breaking UTF-8 sequences, preferring line breaks
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
