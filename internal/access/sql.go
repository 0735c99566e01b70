package access

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	apperrors "translate-tg-bot/internal/errors"
)

const adminMetaKey = "admin_user_id"

// The same statements run on SQLite and PostgreSQL; placeholders are
// rebound per driver.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS access_meta (
		meta_key TEXT PRIMARY KEY,
		meta_value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS approved_users (
		user_id BIGINT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		approved_at TIMESTAMP NOT NULL,
		approved_by BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS banned_users (
		user_id BIGINT PRIMARY KEY,
		banned_at TIMESTAMP NOT NULL,
		banned_by BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pending_requests (
		user_id BIGINT PRIMARY KEY,
		request_id TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		chat_id BIGINT NOT NULL,
		requested_at TIMESTAMP NOT NULL,
		notified_at TIMESTAMP,
		admin_msg_id INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS user_data (
		user_id BIGINT NOT NULL,
		data_key TEXT NOT NULL,
		data_value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, data_key)
	)`,
}

const pendingColumns = `user_id, request_id, username, first_name, chat_id, requested_at, notified_at, admin_msg_id`

// SQLStore implements Store on top of database/sql via sqlx.
// Supported drivers are "sqlite" (modernc) and "postgres" (lib/pq).
type SQLStore struct {
	db   *sqlx.DB
	opts options
}

// NewSQLiteStore creates a new SQLite-backed access store
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	return newSQLStore(db, opts)
}

// NewPostgresStore creates a new PostgreSQL-backed access store
func NewPostgresStore(dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return newSQLStore(db, opts)
}

func newSQLStore(db *sqlx.DB, opts []Option) (*SQLStore, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *SQLStore) SetAdmin(userID int64) error {
	return s.inTx("set admin", func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(tx.Rebind(`
			INSERT INTO access_meta (meta_key, meta_value) VALUES (?, ?)
			ON CONFLICT(meta_key) DO UPDATE SET meta_value = excluded.meta_value
		`), adminMetaKey, strconv.FormatInt(userID, 10)); err != nil {
			return err
		}
		if _, err := tx.Exec(tx.Rebind("DELETE FROM banned_users WHERE user_id = ?"), userID); err != nil {
			return err
		}
		if _, err := tx.Exec(tx.Rebind("DELETE FROM pending_requests WHERE user_id = ?"), userID); err != nil {
			return err
		}
		_, err := tx.Exec(tx.Rebind(`
			INSERT INTO approved_users (user_id, approved_at, approved_by)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO NOTHING
		`), userID, s.opts.now().UTC(), userID)
		return err
	})
}

func (s *SQLStore) Admin() (int64, error) {
	var value string
	err := s.db.Get(&value, s.db.Rebind("SELECT meta_value FROM access_meta WHERE meta_key = ?"), adminMetaKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("get admin", err)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, storageErr("parse admin", err)
	}
	return id, nil
}

// IsApproved checks if a user has been approved
func (s *SQLStore) IsApproved(userID int64) (bool, error) {
	ok, err := exists(s.db, "SELECT 1 FROM approved_users WHERE user_id = ?", userID)
	if err != nil {
		return false, storageErr("check approved status", err)
	}
	return ok, nil
}

// IsBanned checks if a user has been banned
func (s *SQLStore) IsBanned(userID int64) (bool, error) {
	ok, err := exists(s.db, "SELECT 1 FROM banned_users WHERE user_id = ?", userID)
	if err != nil {
		return false, storageErr("check banned status", err)
	}
	return ok, nil
}

// HasPending checks if a user has an open request
func (s *SQLStore) HasPending(userID int64) (bool, error) {
	ok, err := exists(s.db, "SELECT 1 FROM pending_requests WHERE user_id = ?", userID)
	if err != nil {
		return false, storageErr("check pending status", err)
	}
	return ok, nil
}

func (s *SQLStore) Status(userID int64) (Status, error) {
	var banned, approved, pending bool
	err := s.db.QueryRowx(s.db.Rebind(`
		SELECT
			EXISTS(SELECT 1 FROM banned_users WHERE user_id = ?),
			EXISTS(SELECT 1 FROM approved_users WHERE user_id = ?),
			EXISTS(SELECT 1 FROM pending_requests WHERE user_id = ?)
	`), userID, userID, userID).Scan(&banned, &approved, &pending)
	if err != nil {
		return StatusUnknown, storageErr("read status", err)
	}
	return DeriveStatus(banned, approved, pending), nil
}

// GetPending retrieves a pending request by user ID
func (s *SQLStore) GetPending(userID int64) (*PendingRequest, error) {
	req, err := getPending(s.db, userID)
	if err != nil {
		return nil, storageErr("get pending request", err)
	}
	return req, nil
}

func (s *SQLStore) RequestApproval(req PendingRequest) (bool, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = s.opts.now().UTC()
	}

	var created bool
	err := s.inTx("request approval", func(tx *sqlx.Tx) error {
		banned, err := exists(tx, "SELECT 1 FROM banned_users WHERE user_id = ?", req.UserID)
		if err != nil || banned {
			return err
		}
		approved, err := exists(tx, "SELECT 1 FROM approved_users WHERE user_id = ?", req.UserID)
		if err != nil || approved {
			return err
		}

		existing, err := getPending(tx, req.UserID)
		if err != nil {
			return err
		}

		var res sql.Result
		switch {
		case existing == nil:
			// A concurrent insert for the same user loses on the conflict
			res, err = tx.Exec(tx.Rebind(`
				INSERT INTO pending_requests (user_id, request_id, username, first_name, chat_id, requested_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(user_id) DO NOTHING
			`), req.UserID, req.RequestID, req.Username, req.FirstName, req.ChatID, req.RequestedAt)
		case s.opts.expired(existing.RequestedAt):
			// Only the writer that still sees the old request id reopens it
			res, err = tx.Exec(tx.Rebind(`
				UPDATE pending_requests
				SET request_id = ?, username = ?, first_name = ?, chat_id = ?,
					requested_at = ?, notified_at = NULL, admin_msg_id = 0
				WHERE user_id = ? AND request_id = ?
			`), req.RequestID, req.Username, req.FirstName, req.ChatID, req.RequestedAt,
				req.UserID, existing.RequestID)
		default:
			return nil
		}
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// RecordNotification marks a pending request as notified
func (s *SQLStore) RecordNotification(userID int64, requestID string, adminMsgID int) error {
	_, err := s.db.Exec(s.db.Rebind(`
		UPDATE pending_requests
		SET notified_at = ?, admin_msg_id = ?
		WHERE user_id = ? AND request_id = ?
	`), s.opts.now().UTC(), adminMsgID, userID, requestID)
	if err != nil {
		return storageErr("record notification", err)
	}
	return nil
}

func (s *SQLStore) Approve(userID, approvedBy int64) error {
	return s.inTx("approve", func(tx *sqlx.Tx) error {
		banned, err := exists(tx, "SELECT 1 FROM banned_users WHERE user_id = ?", userID)
		if err != nil {
			return err
		}
		if banned {
			return fmt.Errorf("approve %d: %w", userID, apperrors.ErrActorBanned)
		}

		var username string
		if req, err := getPending(tx, userID); err != nil {
			return err
		} else if req != nil {
			username = req.Username
		}

		if _, err := tx.Exec(tx.Rebind("DELETE FROM pending_requests WHERE user_id = ?"), userID); err != nil {
			return err
		}
		_, err = tx.Exec(tx.Rebind(`
			INSERT INTO approved_users (user_id, username, approved_at, approved_by)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				username = excluded.username,
				approved_at = excluded.approved_at,
				approved_by = excluded.approved_by
		`), userID, username, s.opts.now().UTC(), approvedBy)
		return err
	})
}

func (s *SQLStore) Deny(userID int64) error {
	if _, err := s.db.Exec(s.db.Rebind("DELETE FROM pending_requests WHERE user_id = ?"), userID); err != nil {
		return storageErr("deny", err)
	}
	return nil
}

func (s *SQLStore) Ban(userID, bannedBy int64) error {
	return s.inTx("ban", func(tx *sqlx.Tx) error {
		var admin string
		err := tx.Get(&admin, tx.Rebind("SELECT meta_value FROM access_meta WHERE meta_key = ?"), adminMetaKey)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if admin == strconv.FormatInt(userID, 10) {
			return fmt.Errorf("ban %d: %w", userID, apperrors.ErrCannotBanAdmin)
		}

		if _, err := tx.Exec(tx.Rebind(`
			INSERT INTO banned_users (user_id, banned_at, banned_by)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO NOTHING
		`), userID, s.opts.now().UTC(), bannedBy); err != nil {
			return err
		}
		if _, err := tx.Exec(tx.Rebind("DELETE FROM approved_users WHERE user_id = ?"), userID); err != nil {
			return err
		}
		_, err = tx.Exec(tx.Rebind("DELETE FROM pending_requests WHERE user_id = ?"), userID)
		return err
	})
}

func (s *SQLStore) ListPending() ([]PendingRequest, error) {
	out := []PendingRequest{}
	err := s.db.Select(&out, "SELECT "+pendingColumns+" FROM pending_requests ORDER BY requested_at, user_id")
	if err != nil {
		return nil, storageErr("list pending requests", err)
	}
	return out, nil
}

func (s *SQLStore) ListApproved() ([]ApprovedUser, error) {
	out := []ApprovedUser{}
	err := s.db.Select(&out, "SELECT user_id, username, approved_at, approved_by FROM approved_users ORDER BY approved_at, user_id")
	if err != nil {
		return nil, storageErr("list approved users", err)
	}
	return out, nil
}

func (s *SQLStore) ListBanned() ([]BannedUser, error) {
	out := []BannedUser{}
	err := s.db.Select(&out, "SELECT user_id, banned_at, banned_by FROM banned_users ORDER BY banned_at, user_id")
	if err != nil {
		return nil, storageErr("list banned users", err)
	}
	return out, nil
}

func (s *SQLStore) SetData(userID int64, key, value string) error {
	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO user_data (user_id, data_key, data_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, data_key) DO UPDATE SET
			data_value = excluded.data_value,
			updated_at = excluded.updated_at
	`), userID, key, value, s.opts.now().UTC())
	if err != nil {
		return storageErr("set user data", err)
	}
	return nil
}

func (s *SQLStore) GetData(userID int64, key string) (string, bool, error) {
	var value string
	err := s.db.Get(&value, s.db.Rebind("SELECT data_value FROM user_data WHERE user_id = ? AND data_key = ?"), userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get user data", err)
	}
	return value, true, nil
}

// Close releases database resources
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction. Errors that already carry a user-facing
// meaning pass through, everything else is a storage failure.
func (s *SQLStore) inTx(op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return storageErr(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		var userErr *apperrors.UserError
		if errors.As(err, &userErr) {
			return err
		}
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// exists runs a "SELECT 1" style query and reports whether it matched a row
func exists(q sqlx.Queryer, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowx(rebind(q, query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func getPending(q sqlx.Queryer, userID int64) (*PendingRequest, error) {
	var req PendingRequest
	err := sqlx.Get(q, &req, rebind(q, "SELECT "+pendingColumns+" FROM pending_requests WHERE user_id = ?"), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func rebind(q sqlx.Queryer, query string) string {
	if ext, ok := q.(sqlx.Ext); ok {
		return ext.Rebind(query)
	}
	return query
}
