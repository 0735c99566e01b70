package access

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/AlekSi/pointer"
	"github.com/google/uuid"

	apperrors "translate-tg-bot/internal/errors"
)

// MemoryStore implements Store in process memory. Nothing survives a restart,
// it backs tests and the "memory" storage driver.
type MemoryStore struct {
	mu       sync.RWMutex
	opts     options
	admin    int64
	approved map[int64]ApprovedUser
	banned   map[int64]BannedUser
	pending  map[int64]PendingRequest
	data     map[int64]map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:     buildOptions(opts),
		approved: make(map[int64]ApprovedUser),
		banned:   make(map[int64]BannedUser),
		pending:  make(map[int64]PendingRequest),
		data:     make(map[int64]map[string]string),
	}
}

func (s *MemoryStore) SetAdmin(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.admin = userID
	delete(s.banned, userID)
	delete(s.pending, userID)
	if _, ok := s.approved[userID]; !ok {
		s.approved[userID] = ApprovedUser{
			UserID:     userID,
			ApprovedAt: s.opts.now().UTC(),
			ApprovedBy: userID,
		}
	}
	return nil
}

func (s *MemoryStore) Admin() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin, nil
}

func (s *MemoryStore) IsApproved(userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.approved[userID]
	return ok, nil
}

func (s *MemoryStore) IsBanned(userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.banned[userID]
	return ok, nil
}

func (s *MemoryStore) HasPending(userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[userID]
	return ok, nil
}

func (s *MemoryStore) Status(userID int64) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, banned := s.banned[userID]
	_, approved := s.approved[userID]
	_, pending := s.pending[userID]
	return DeriveStatus(banned, approved, pending), nil
}

func (s *MemoryStore) GetPending(userID int64) (*PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.pending[userID]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (s *MemoryStore) RequestApproval(req PendingRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banned[req.UserID]; ok {
		return false, nil
	}
	if _, ok := s.approved[req.UserID]; ok {
		return false, nil
	}
	if existing, ok := s.pending[req.UserID]; ok && !s.opts.expired(existing.RequestedAt) {
		return false, nil
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = s.opts.now().UTC()
	}
	req.NotifiedAt = nil
	req.AdminMsgID = 0
	s.pending[req.UserID] = req
	return true, nil
}

func (s *MemoryStore) RecordNotification(userID int64, requestID string, adminMsgID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pending[userID]
	if !ok || req.RequestID != requestID {
		return nil
	}
	req.NotifiedAt = pointer.ToTime(s.opts.now().UTC())
	req.AdminMsgID = adminMsgID
	s.pending[userID] = req
	return nil
}

func (s *MemoryStore) Approve(userID, approvedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banned[userID]; ok {
		return fmt.Errorf("approve %d: %w", userID, apperrors.ErrActorBanned)
	}

	user := ApprovedUser{
		UserID:     userID,
		ApprovedAt: s.opts.now().UTC(),
		ApprovedBy: approvedBy,
	}
	if req, ok := s.pending[userID]; ok {
		user.Username = req.Username
	}
	delete(s.pending, userID)
	s.approved[userID] = user
	return nil
}

func (s *MemoryStore) Deny(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
	return nil
}

func (s *MemoryStore) Ban(userID, bannedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.admin != 0 && userID == s.admin {
		return fmt.Errorf("ban %d: %w", userID, apperrors.ErrCannotBanAdmin)
	}

	delete(s.approved, userID)
	delete(s.pending, userID)
	if _, ok := s.banned[userID]; !ok {
		s.banned[userID] = BannedUser{
			UserID:   userID,
			BannedAt: s.opts.now().UTC(),
			BannedBy: bannedBy,
		}
	}
	return nil
}

func (s *MemoryStore) ListPending() ([]PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PendingRequest, 0, len(s.pending))
	for _, req := range s.pending {
		out = append(out, req)
	}
	slices.SortFunc(out, func(a, b PendingRequest) int {
		return cmp.Or(a.RequestedAt.Compare(b.RequestedAt), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}

func (s *MemoryStore) ListApproved() ([]ApprovedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ApprovedUser, 0, len(s.approved))
	for _, user := range s.approved {
		out = append(out, user)
	}
	slices.SortFunc(out, func(a, b ApprovedUser) int {
		return cmp.Or(a.ApprovedAt.Compare(b.ApprovedAt), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}

func (s *MemoryStore) ListBanned() ([]BannedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]BannedUser, 0, len(s.banned))
	for _, user := range s.banned {
		out = append(out, user)
	}
	slices.SortFunc(out, func(a, b BannedUser) int {
		return cmp.Or(a.BannedAt.Compare(b.BannedAt), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}

func (s *MemoryStore) SetData(userID int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.data[userID]
	if !ok {
		values = make(map[string]string)
		s.data[userID] = values
	}
	values[key] = value
	return nil
}

func (s *MemoryStore) GetData(userID int64, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[userID][key]
	return value, ok, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
