package approval

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "translate-tg-bot/internal/errors"
)

// Action is an admin verdict on a pending request
type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

// Decision is the normalized form of an admin verdict, whether it arrived as
// a typed command or as an inline button callback.
type Decision struct {
	Action   Action
	TargetID int64
}

// CallbackData encodes the decision as "{approve|deny}_{targetID}"
func (d Decision) CallbackData() string {
	return fmt.Sprintf("%s_%d", d.Action, d.TargetID)
}

// ParseCallbackData decodes an inline button payload
func ParseCallbackData(data string) (Decision, error) {
	action, target, ok := strings.Cut(data, "_")
	if !ok {
		return Decision{}, fmt.Errorf("callback %q: %w", data, apperrors.ErrInvalidCommand)
	}
	return newDecision(action, target)
}

// ParseCommand decodes "/approve <id>" or "/deny <id>", given the command
// name without the slash and its arguments
func ParseCommand(command, args string) (Decision, error) {
	return newDecision(command, strings.TrimSpace(args))
}

func newDecision(action, target string) (Decision, error) {
	a := Action(action)
	if a != ActionApprove && a != ActionDeny {
		return Decision{}, fmt.Errorf("action %q: %w", action, apperrors.ErrInvalidCommand)
	}

	id, err := ParseUserID(target)
	if err != nil {
		return Decision{}, err
	}

	return Decision{Action: a, TargetID: id}, nil
}

// ParseUserID parses a positive actor identifier
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("user id %q: %w", s, apperrors.ErrInvalidCommand)
	}
	return id, nil
}
