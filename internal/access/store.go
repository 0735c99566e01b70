// Package access holds the persistent access-control state of the bot:
// the admin identity, the approved and banned sets, the open approval
// requests and per-user data annotations.
package access

import (
	"fmt"
	"time"

	apperrors "translate-tg-bot/internal/errors"
)

// Status is derived from set membership, never stored
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusApproved
	StatusBanned
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// DeriveStatus is the single place membership is turned into a status.
// Banned wins over approved, approved over pending.
func DeriveStatus(banned, approved, pending bool) Status {
	switch {
	case banned:
		return StatusBanned
	case approved:
		return StatusApproved
	case pending:
		return StatusPending
	default:
		return StatusUnknown
	}
}

// ApprovedUser represents a member of the approved set
type ApprovedUser struct {
	UserID     int64     `db:"user_id"`
	Username   string    `db:"username"`
	ApprovedAt time.Time `db:"approved_at"`
	ApprovedBy int64     `db:"approved_by"`
}

// BannedUser represents a member of the banned set
type BannedUser struct {
	UserID   int64     `db:"user_id"`
	BannedAt time.Time `db:"banned_at"`
	BannedBy int64     `db:"banned_by"`
}

// PendingRequest tracks a user waiting for admin approval
type PendingRequest struct {
	UserID      int64      `db:"user_id"`
	RequestID   string     `db:"request_id"`
	Username    string     `db:"username"`
	FirstName   string     `db:"first_name"`
	ChatID      int64      `db:"chat_id"`
	RequestedAt time.Time  `db:"requested_at"`
	NotifiedAt  *time.Time `db:"notified_at"`
	AdminMsgID  int        `db:"admin_msg_id"`
}

// Store defines the access-control persistence contract.
//
// Every method is atomic on its own and safe for concurrent use. Failures of
// the underlying storage are reported wrapping errors.ErrStorage.
type Store interface {
	// SetAdmin records the admin identity and seeds it into the approved set.
	// Calling it again with the same id is a no-op.
	SetAdmin(userID int64) error

	// Admin returns the recorded admin identity, 0 if none
	Admin() (int64, error)

	IsApproved(userID int64) (bool, error)
	IsBanned(userID int64) (bool, error)
	HasPending(userID int64) (bool, error)

	// Status computes the derived status in a single read
	Status(userID int64) (Status, error)

	// GetPending returns the open request for a user, nil if none
	GetPending(userID int64) (*PendingRequest, error)

	// RequestApproval opens a pending request unless the user is approved,
	// banned or already has one open (and not expired). It reports whether a
	// request was created, which is when the admin has to be notified.
	RequestApproval(req PendingRequest) (bool, error)

	// RecordNotification stores the admin message that announced a request.
	// It only applies while requestID is still the user's open request.
	RecordNotification(userID int64, requestID string, adminMsgID int) error

	// Approve moves a user into the approved set and clears any pending request.
	// Approving a banned user fails with errors.ErrActorBanned.
	Approve(userID, approvedBy int64) error

	// Deny clears any pending request
	Deny(userID int64) error

	// Ban adds a user to the banned set, removing it from the approved set and
	// clearing any pending request. Banning the admin fails with
	// errors.ErrCannotBanAdmin.
	Ban(userID, bannedBy int64) error

	ListPending() ([]PendingRequest, error)
	ListApproved() ([]ApprovedUser, error)
	ListBanned() ([]BannedUser, error)

	// SetData stores a free-form annotation for a user
	SetData(userID int64, key, value string) error

	// GetData reads an annotation, ok is false when it was never set
	GetData(userID int64, key string) (value string, ok bool, err error)

	// Close releases resources
	Close() error
}

// Option configures a store implementation
type Option func(*options)

type options struct {
	pendingTTL time.Duration
	now        func() time.Time
}

// WithPendingTTL lets a pending request older than ttl be reopened by the next
// RequestApproval. Zero keeps requests open until a decision is recorded.
func WithPendingTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.pendingTTL = ttl
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// expired reports whether a request opened at requestedAt may be reopened
func (o options) expired(requestedAt time.Time) bool {
	return o.pendingTTL > 0 && o.now().Sub(requestedAt) >= o.pendingTTL
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStorage, err)
}
