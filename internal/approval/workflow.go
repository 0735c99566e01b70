// Package approval gates actors behind admin approval and applies the
// admin's decisions.
package approval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"translate-tg-bot/internal/access"
	"translate-tg-bot/internal/limiter"
)

// Outcome of gating an actor
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeBlocked
	OutcomeAwaitingApproval
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeAwaitingApproval:
		return "awaiting_approval"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ReasonBanned is the only reason an actor is blocked today
const ReasonBanned = "banned"

// Admission is the result of Admit
type Admission struct {
	Outcome Outcome
	Reason  string
	// Notified is true when this call opened the request and told the admin
	Notified bool
}

// Actor identifies the sender of an inbound event
type Actor struct {
	ID        int64
	ChatID    int64
	Username  string
	FirstName string
}

// Notifier delivers messages produced by the workflow and the router
type Notifier interface {
	// NotifyAdmin announces a new pending request, returning the message id
	NotifyAdmin(ctx context.Context, adminID int64, req access.PendingRequest) (int, error)

	// Send delivers plain text to a chat
	Send(ctx context.Context, chatID int64, text string) error

	// CloseRequest rewrites a previous admin announcement once it is decided
	CloseRequest(ctx context.Context, adminID int64, msgID int, text string) error
}

// Workflow decides whether an actor may use the bot
type Workflow struct {
	store    access.Store
	notifier Notifier
	adminID  int64
	locks    *limiter.KeyedMutex
	logger   *slog.Logger
}

// NewWorkflow creates the gate. locks must be shared with the Router so that
// requests and decisions for the same actor never interleave.
func NewWorkflow(
	store access.Store,
	notifier Notifier,
	adminID int64,
	locks *limiter.KeyedMutex,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		store:    store,
		notifier: notifier,
		adminID:  adminID,
		locks:    locks,
		logger:   logger,
	}
}

// AdminID returns the configured admin identity
func (w *Workflow) AdminID() int64 {
	return w.adminID
}

// Admit gates an actor. Unknown actors get a pending request and the admin is
// notified once per open request; repeated calls are idempotent.
func (w *Workflow) Admit(ctx context.Context, actor Actor) (Admission, error) {
	if actor.ID == w.adminID {
		return Admission{Outcome: OutcomeAllow}, nil
	}

	g, err := w.gate(actor)
	if err != nil {
		return Admission{}, err
	}

	switch {
	case g.status == access.StatusApproved:
		return Admission{Outcome: OutcomeAllow}, nil
	case g.status == access.StatusBanned:
		return Admission{Outcome: OutcomeBlocked, Reason: ReasonBanned}, nil
	case !g.created:
		return Admission{Outcome: OutcomeAwaitingApproval}, nil
	}

	// The actor lock is released, the admin send may block
	if !w.notifyAdmin(ctx, g.req) {
		return Admission{Outcome: OutcomeAwaitingApproval}, nil
	}
	return Admission{Outcome: OutcomeAwaitingApproval, Notified: true}, nil
}

type gateResult struct {
	status  access.Status
	req     access.PendingRequest
	created bool
}

// gate runs the read-modify-write part of Admit under the actor's lock
func (w *Workflow) gate(actor Actor) (gateResult, error) {
	unlock := w.locks.Lock(actor.ID)
	defer unlock()

	status, err := w.store.Status(actor.ID)
	if err != nil {
		return gateResult{}, fmt.Errorf("admit %d: %w", actor.ID, err)
	}
	if status == access.StatusApproved || status == access.StatusBanned {
		return gateResult{status: status}, nil
	}

	chatID := actor.ChatID
	if chatID == 0 {
		chatID = actor.ID
	}
	req := access.PendingRequest{
		UserID:    actor.ID,
		RequestID: uuid.NewString(),
		Username:  actor.Username,
		FirstName: actor.FirstName,
		ChatID:    chatID,
	}

	created, err := w.store.RequestApproval(req)
	if err != nil {
		return gateResult{}, fmt.Errorf("admit %d: %w", actor.ID, err)
	}
	return gateResult{status: access.StatusPending, req: req, created: created}, nil
}

// notifyAdmin sends the announcement for a freshly opened request. When the
// send fails the request is withdrawn so the actor's next message retries.
func (w *Workflow) notifyAdmin(ctx context.Context, req access.PendingRequest) bool {
	logger := w.logger.With("user_id", req.UserID, "request_id", req.RequestID)

	msgID, err := w.notifier.NotifyAdmin(ctx, w.adminID, req)
	if err != nil {
		logger.Error("failed to notify admin", "error", err)

		unlock := w.locks.Lock(req.UserID)
		defer unlock()
		if current, gerr := w.store.GetPending(req.UserID); gerr == nil && current != nil && current.RequestID == req.RequestID {
			if derr := w.store.Deny(req.UserID); derr != nil {
				logger.Error("failed to withdraw unannounced request", "error", derr)
			}
		}
		return false
	}

	if err := w.store.RecordNotification(req.UserID, req.RequestID, msgID); err != nil {
		logger.Error("failed to record admin notification", "error", err)
	}

	// Decided while the announcement was in flight, its buttons must not act
	// on a newer request
	if current, err := w.store.GetPending(req.UserID); err == nil && (current == nil || current.RequestID != req.RequestID) {
		logger.Info("request handled before announcement arrived")
		if err := w.notifier.CloseRequest(ctx, w.adminID, msgID, fmt.Sprintf("Request from %s was already handled.", DescribeRequest(req))); err != nil {
			logger.Error("failed to close stale admin notification", "error", err)
		}
		return true
	}

	logger.Info("approval requested", "username", req.Username)
	return true
}
