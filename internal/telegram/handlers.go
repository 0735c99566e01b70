package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"translate-tg-bot/internal/access"
	"translate-tg-bot/internal/approval"
	apperrors "translate-tg-bot/internal/errors"
	"translate-tg-bot/internal/limiter"
)

const (
	GreetingNotice       = "Hi! Send me any text, and I will translate it to English!"
	PendingNotice        = "Your request to use this bot has been sent to the administrator. You will be notified once it is reviewed."
	BannedNotice         = "Sorry, you are banned from using this bot."
	UnknownCommandNotice = "Unknown command. Use /help for available commands."
	TimeoutNotice        = "The translation took too long. Please try again."
)

// Gate admits or rejects an actor
type Gate interface {
	Admit(ctx context.Context, actor approval.Actor) (approval.Admission, error)
}

// DecisionRouter applies admin-only operations
type DecisionRouter interface {
	ApplyDecision(ctx context.Context, deciderID int64, d approval.Decision) (*approval.Result, error)
	Ban(ctx context.Context, deciderID, targetID int64) error
	SetData(deciderID, targetID int64, key, value string) error
	GetData(deciderID, targetID int64, key string) (string, bool, error)
	Pending(deciderID int64) ([]access.PendingRequest, error)
	Status(deciderID, targetID int64) (access.Status, error)
}

// Translator is the text transformation collaborator
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Replier sends messages back to Telegram
type Replier interface {
	Send(ctx context.Context, chatID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	Typing(ctx context.Context, chatID int64) error
}

type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Dispatcher routes every inbound event: admin decisions to the router,
// everything else through the gate and, once admitted, to the translator.
type Dispatcher struct {
	adminID    int64
	gate       Gate
	router     DecisionRouter
	translator Translator
	replier    Replier
	inflight   *limiter.InFlight
	logger     *slog.Logger
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(
	adminID int64,
	gate Gate,
	router DecisionRouter,
	translator Translator,
	replier Replier,
	inflight *limiter.InFlight,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		adminID:    adminID,
		gate:       gate,
		router:     router,
		translator: translator,
		replier:    replier,
		inflight:   inflight,
		logger:     logger,
	}
}

// HandleUpdate processes a single update
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	d.Dispatch(ctx, ClassifyUpdate(update, d.adminID))
}

// Dispatch processes a single classified event
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindIgnored:
		return
	case KindDecisionCallback:
		d.handleCallback(ctx, ev)
		return
	case KindAdminCommand:
		d.handleAdminCommand(ctx, ev)
		return
	}

	adm, err := d.gate.Admit(ctx, ev.Actor)
	if err != nil {
		d.logger.Error("admission failed", "error", err, "user_id", ev.Actor.ID)
		d.reply(ctx, ev.Actor.ChatID, apperrors.GetUserMessage(err))
		return
	}

	switch adm.Outcome {
	case approval.OutcomeBlocked:
		d.logger.Debug("blocked actor", "user_id", ev.Actor.ID, "reason", adm.Reason)
		d.reply(ctx, ev.Actor.ChatID, BannedNotice)
		return
	case approval.OutcomeAwaitingApproval:
		d.reply(ctx, ev.Actor.ChatID, PendingNotice)
		return
	}

	switch ev.Kind {
	case KindStartCommand:
		d.reply(ctx, ev.Actor.ChatID, GreetingNotice)
	case KindUnknownCommand:
		d.reply(ctx, ev.Actor.ChatID, UnknownCommandNotice)
	case KindPlainMessage:
		d.handleTranslate(ctx, ev)
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev Event) {
	answer, alert := "", false
	defer func() {
		if err := d.replier.AnswerCallback(ctx, ev.CallbackID, answer, alert); err != nil {
			d.logger.Error("failed to answer callback", "error", err, "user_id", ev.Actor.ID)
		}
	}()

	decision, err := approval.ParseCallbackData(ev.CallbackData)
	if err != nil {
		d.logger.Warn("malformed callback", "data", ev.CallbackData, "user_id", ev.Actor.ID)
		return
	}

	res, err := d.router.ApplyDecision(ctx, ev.Actor.ID, decision)
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		// Logged by the router, never surfaced
		return
	case err != nil:
		// Transient failures pop up so the admin knows to press again
		answer, alert = apperrors.GetUserMessage(err), apperrors.IsRetryable(err)
		return
	}

	if res.Decision.Action == approval.ActionApprove {
		answer = "Approved"
	} else {
		answer = "Denied"
	}
}

func (d *Dispatcher) handleAdminCommand(ctx context.Context, ev Event) {
	chatID := ev.Actor.ChatID
	err := d.runAdminCommand(ctx, ev)
	if err == nil {
		return
	}

	var userErr *apperrors.UserError
	if !errors.As(err, &userErr) || errors.Is(err, apperrors.ErrStorage) {
		d.logger.Error("admin command failed", "error", err, "command", ev.Command)
	}
	d.reply(ctx, chatID, apperrors.GetUserMessage(err))
}

func (d *Dispatcher) runAdminCommand(ctx context.Context, ev Event) error {
	adminID := ev.Actor.ID
	chatID := ev.Actor.ChatID

	switch ev.Command {
	case CmdApprove, CmdDeny:
		decision, err := approval.ParseCommand(ev.Command, ev.Args)
		if err != nil {
			return err
		}
		_, err = d.router.ApplyDecision(ctx, adminID, decision)
		return err

	case CmdBanUser:
		targetID, err := approval.ParseUserID(ev.Args)
		if err != nil {
			return err
		}
		return d.router.Ban(ctx, adminID, targetID)

	case CmdSetData:
		idArg, rest, _ := strings.Cut(ev.Args, " ")
		key, value, _ := strings.Cut(strings.TrimSpace(rest), " ")
		value = strings.TrimSpace(value)
		targetID, err := approval.ParseUserID(idArg)
		if err != nil {
			return err
		}
		if key == "" || value == "" {
			return apperrors.ErrInvalidCommand
		}
		if err := d.router.SetData(adminID, targetID, key, value); err != nil {
			return err
		}
		d.reply(ctx, chatID, fmt.Sprintf("Saved %s for user %d.", key, targetID))
		return nil

	case CmdGetData:
		fields := strings.Fields(ev.Args)
		if len(fields) != 2 {
			return apperrors.ErrInvalidCommand
		}
		targetID, err := approval.ParseUserID(fields[0])
		if err != nil {
			return err
		}
		value, ok, err := d.router.GetData(adminID, targetID, fields[1])
		if err != nil {
			return err
		}
		if !ok {
			d.reply(ctx, chatID, fmt.Sprintf("No %s set for user %d.", fields[1], targetID))
			return nil
		}
		d.reply(ctx, chatID, fmt.Sprintf("%s for user %d: %s", fields[1], targetID, value))
		return nil

	case CmdPending:
		pending, err := d.router.Pending(adminID)
		if err != nil {
			return err
		}
		d.reply(ctx, chatID, formatPending(pending))
		return nil

	case CmdStatus:
		if ev.Args == "" {
			d.reply(ctx, chatID, d.serviceStatus(ctx, adminID))
			return nil
		}
		targetID, err := approval.ParseUserID(ev.Args)
		if err != nil {
			return err
		}
		status, err := d.router.Status(adminID, targetID)
		if err != nil {
			return err
		}
		d.reply(ctx, chatID, fmt.Sprintf("User %d: %s", targetID, status))
		return nil
	}

	return apperrors.ErrInvalidCommand
}

func (d *Dispatcher) serviceStatus(ctx context.Context, adminID int64) string {
	translator := "Online"
	if hc, ok := d.translator.(healthChecker); ok {
		if err := hc.CheckHealth(ctx); err != nil {
			translator = fmt.Sprintf("Offline (%v)", err)
		}
	}

	openRequests := "unknown"
	if pending, err := d.router.Pending(adminID); err == nil {
		openRequests = fmt.Sprint(len(pending))
	} else {
		d.logger.Error("failed to list pending requests", "error", err)
	}

	return fmt.Sprintf(
		"Translator: %s\n"+
			"Active translations: %d\n"+
			"Pending requests: %s",
		translator, d.inflight.Active(), openRequests)
}

func (d *Dispatcher) handleTranslate(ctx context.Context, ev Event) {
	text := strings.TrimSpace(ev.Text)
	userID := ev.Actor.ID
	chatID := ev.Actor.ChatID

	// One translation per user at a time
	if err := d.inflight.TryAcquire(userID); err != nil {
		if errors.Is(err, limiter.ErrAtCapacity) {
			d.logger.Warn("translation capacity reached", "user_id", userID, "active", d.inflight.Active())
			d.reply(ctx, chatID, apperrors.ErrTranslatorBusy.UserMsg)
			return
		}
		d.reply(ctx, chatID, apperrors.ErrTranslationInProgress.UserMsg)
		return
	}
	defer d.inflight.Release(userID)

	if err := d.replier.Typing(ctx, chatID); err != nil {
		d.logger.Debug("failed to send typing action", "error", err)
	}

	d.logger.Info("starting translation", "user_id", userID, "text_length", len(text))

	translated, err := d.translator.Translate(ctx, text)
	if err != nil {
		d.logger.Error("translation failed", "error", err, "user_id", userID)
		if !errors.Is(err, apperrors.ErrTranslationFailed) {
			err = fmt.Errorf("%w: %w", apperrors.ErrTranslationFailed, err)
		}
		if isTimeout(ctx, err) {
			err = apperrors.Wrap(err, TimeoutNotice, true)
		}
		d.reply(ctx, chatID, apperrors.GetUserMessage(err))
		return
	}

	d.reply(ctx, chatID, translated)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.replier.Send(ctx, chatID, text); err != nil {
		d.logger.Error("failed to send message", "error", err, "chat_id", chatID)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func formatPending(pending []access.PendingRequest) string {
	if len(pending) == 0 {
		return "No pending requests."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pending requests (%d):\n", len(pending))
	for _, req := range pending {
		fmt.Fprintf(&b, "\n%s, since %s", approval.DescribeRequest(req), req.RequestedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}
