package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"translate-tg-bot/internal/approval"
)

// Kind classifies an inbound update once, at the boundary
type Kind int

const (
	KindIgnored Kind = iota
	KindStartCommand
	KindPlainMessage
	KindUnknownCommand
	KindAdminCommand
	KindDecisionCallback
)

func (k Kind) String() string {
	switch k {
	case KindStartCommand:
		return "start_command"
	case KindPlainMessage:
		return "plain_message"
	case KindUnknownCommand:
		return "unknown_command"
	case KindAdminCommand:
		return "admin_command"
	case KindDecisionCallback:
		return "decision_callback"
	default:
		return "ignored"
	}
}

// Admin command names, without the slash
const (
	CmdApprove = "approve"
	CmdDeny    = "deny"
	CmdBanUser = "ban_user"
	CmdSetData = "set_data"
	CmdGetData = "get_data"
	CmdPending = "pending"
	CmdStatus  = "status"
)

var adminCommands = map[string]struct{}{
	CmdApprove: {},
	CmdDeny:    {},
	CmdBanUser: {},
	CmdSetData: {},
	CmdGetData: {},
	CmdPending: {},
	CmdStatus:  {},
}

// Event is a platform-neutral view of one inbound update
type Event struct {
	Kind  Kind
	Actor approval.Actor

	Text    string
	Command string
	Args    string

	CallbackID   string
	CallbackData string
}

// ClassifyUpdate turns a Telegram update into an Event. Admin commands are
// only recognized when the sender is the admin; anyone else sending one is
// treated like any other unknown command.
func ClassifyUpdate(update tgbotapi.Update, adminID int64) Event {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil {
			return Event{Kind: KindIgnored}
		}
		ev := Event{
			Kind:         KindDecisionCallback,
			Actor:        actorFrom(cb.From, cb.From.ID),
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}
		if cb.Message != nil && cb.Message.Chat != nil {
			ev.Actor.ChatID = cb.Message.Chat.ID
		}
		return ev
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Event{Kind: KindIgnored}
	}

	ev := Event{
		Actor: actorFrom(msg.From, msg.Chat.ID),
		Text:  msg.Text,
	}

	if msg.IsCommand() {
		ev.Command = strings.ToLower(msg.Command())
		ev.Args = strings.TrimSpace(msg.CommandArguments())

		_, isAdminCmd := adminCommands[ev.Command]
		switch {
		case ev.Command == "start" || ev.Command == "help":
			ev.Kind = KindStartCommand
		case isAdminCmd && msg.From.ID == adminID:
			ev.Kind = KindAdminCommand
		default:
			ev.Kind = KindUnknownCommand
		}
		return ev
	}

	if strings.TrimSpace(msg.Text) == "" {
		ev.Kind = KindIgnored
		return ev
	}

	ev.Kind = KindPlainMessage
	return ev
}

func actorFrom(u *tgbotapi.User, chatID int64) approval.Actor {
	return approval.Actor{
		ID:        u.ID,
		ChatID:    chatID,
		Username:  u.UserName,
		FirstName: u.FirstName,
	}
}
