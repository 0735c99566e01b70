package approval

import (
	"context"
	"fmt"
	"log/slog"

	"translate-tg-bot/internal/access"
	apperrors "translate-tg-bot/internal/errors"
	"translate-tg-bot/internal/limiter"
)

const (
	ApprovedNotice = "Your access request has been approved! Send me any text, and I will translate it to English."
	DeniedNotice   = "Your access request has been denied."
)

// Result describes an applied decision
type Result struct {
	Decision Decision
	Request  access.PendingRequest
}

// Router applies admin decisions and admin-only store operations
type Router struct {
	store    access.Store
	notifier Notifier
	adminID  int64
	locks    *limiter.KeyedMutex
	logger   *slog.Logger
}

// NewRouter creates a decision router sharing the workflow's actor locks
func NewRouter(
	store access.Store,
	notifier Notifier,
	adminID int64,
	locks *limiter.KeyedMutex,
	logger *slog.Logger,
) *Router {
	return &Router{
		store:    store,
		notifier: notifier,
		adminID:  adminID,
		locks:    locks,
		logger:   logger,
	}
}

// ApplyDecision records an approve or deny verdict for the target's pending
// request, then tells the target and acknowledges the decider.
func (r *Router) ApplyDecision(ctx context.Context, deciderID int64, d Decision) (*Result, error) {
	if err := r.authorize(deciderID, string(d.Action)); err != nil {
		return nil, err
	}

	logger := r.logger.With("target_id", d.TargetID, "action", d.Action)

	req, err := r.decide(deciderID, d)
	if err != nil {
		logger.Warn("decision not applied", "error", err)
		return nil, err
	}
	logger = logger.With("request_id", req.RequestID)
	logger.Info("decision applied")

	// Notifications happen outside the actor lock
	notice, verb := ApprovedNotice, "Approved"
	if d.Action == ActionDeny {
		notice, verb = DeniedNotice, "Denied"
	}

	if err := r.notifier.Send(ctx, req.ChatID, notice); err != nil {
		logger.Error("failed to notify user of decision", "error", err)
	}

	ack := fmt.Sprintf("%s %s.", verb, DescribeRequest(*req))
	if req.AdminMsgID != 0 {
		if err := r.notifier.CloseRequest(ctx, r.adminID, req.AdminMsgID, ack); err != nil {
			logger.Error("failed to close admin notification", "error", err)
		}
	}
	if err := r.notifier.Send(ctx, deciderID, ack); err != nil {
		logger.Error("failed to acknowledge decision", "error", err)
	}

	return &Result{Decision: d, Request: *req}, nil
}

func (r *Router) decide(deciderID int64, d Decision) (*access.PendingRequest, error) {
	unlock := r.locks.Lock(d.TargetID)
	defer unlock()

	req, err := r.store.GetPending(d.TargetID)
	if err != nil {
		return nil, fmt.Errorf("%s %d: %w", d.Action, d.TargetID, err)
	}
	if req == nil {
		return nil, fmt.Errorf("%s %d: %w", d.Action, d.TargetID, apperrors.ErrNoSuchRequest)
	}

	switch d.Action {
	case ActionApprove:
		err = r.store.Approve(d.TargetID, deciderID)
	case ActionDeny:
		err = r.store.Deny(d.TargetID)
	default:
		err = apperrors.ErrInvalidCommand
	}
	if err != nil {
		return nil, fmt.Errorf("%s %d: %w", d.Action, d.TargetID, err)
	}

	if req.ChatID == 0 {
		req.ChatID = req.UserID
	}
	return req, nil
}

// Ban permanently excludes the target, whatever its current status
func (r *Router) Ban(ctx context.Context, deciderID, targetID int64) error {
	if err := r.authorize(deciderID, "ban_user"); err != nil {
		return err
	}
	if targetID == r.adminID {
		return fmt.Errorf("ban %d: %w", targetID, apperrors.ErrCannotBanAdmin)
	}

	logger := r.logger.With("target_id", targetID)

	req, err := func() (*access.PendingRequest, error) {
		unlock := r.locks.Lock(targetID)
		defer unlock()

		req, err := r.store.GetPending(targetID)
		if err != nil {
			return nil, err
		}
		if err := r.store.Ban(targetID, deciderID); err != nil {
			return nil, err
		}
		return req, nil
	}()
	if err != nil {
		logger.Warn("ban not applied", "error", err)
		return fmt.Errorf("ban %d: %w", targetID, err)
	}
	logger.Info("user banned")

	ack := fmt.Sprintf("Banned user %d.", targetID)
	if req != nil {
		ack = fmt.Sprintf("Banned %s.", DescribeRequest(*req))
		if req.AdminMsgID != 0 {
			if err := r.notifier.CloseRequest(ctx, r.adminID, req.AdminMsgID, ack); err != nil {
				logger.Error("failed to close admin notification", "error", err)
			}
		}
	}
	if err := r.notifier.Send(ctx, deciderID, ack); err != nil {
		logger.Error("failed to acknowledge ban", "error", err)
	}
	return nil
}

// SetData stores an annotation for the target
func (r *Router) SetData(deciderID, targetID int64, key, value string) error {
	if err := r.authorize(deciderID, "set_data"); err != nil {
		return err
	}
	return r.store.SetData(targetID, key, value)
}

// GetData reads an annotation for the target
func (r *Router) GetData(deciderID, targetID int64, key string) (string, bool, error) {
	if err := r.authorize(deciderID, "get_data"); err != nil {
		return "", false, err
	}
	return r.store.GetData(targetID, key)
}

// Pending lists the open requests
func (r *Router) Pending(deciderID int64) ([]access.PendingRequest, error) {
	if err := r.authorize(deciderID, "pending"); err != nil {
		return nil, err
	}
	return r.store.ListPending()
}

// Status reports the derived status of the target
func (r *Router) Status(deciderID, targetID int64) (access.Status, error) {
	if err := r.authorize(deciderID, "status"); err != nil {
		return access.StatusUnknown, err
	}
	return r.store.Status(targetID)
}

func (r *Router) authorize(deciderID int64, op string) error {
	if deciderID != r.adminID {
		r.logger.Warn("unauthorized admin operation", "user_id", deciderID, "operation", op)
		return fmt.Errorf("%s by %d: %w", op, deciderID, apperrors.ErrUnauthorized)
	}
	return nil
}

// DescribeRequest renders the requesting user for admin-facing messages
func DescribeRequest(req access.PendingRequest) string {
	switch {
	case req.Username != "":
		return fmt.Sprintf("@%s (%d)", req.Username, req.UserID)
	case req.FirstName != "":
		return fmt.Sprintf("%s (%d)", req.FirstName, req.UserID)
	default:
		return fmt.Sprintf("user %d", req.UserID)
	}
}
