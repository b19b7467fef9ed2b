package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// createAttempts bounds retries on the (astronomically unlikely) id collision.
const createAttempts = 3

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewService(r Repository, ttl time.Duration) *Service {
	return &Service{repo: r, ttl: ttl, now: time.Now}
}

// TTL is the lifetime given to new and renewed sessions.
func (s *Service) TTL() time.Duration { return s.ttl }

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateSession stores a new session bound to userID.
func (s *Service) CreateSession(ctx context.Context, userID string) (*Session, error) {
	for i := 0; i < createAttempts; i++ {
		id, err := newID()
		if err != nil {
			return nil, fmt.Errorf("session id: %w", err)
		}
		now := s.now().UTC()
		sess := &Session{
			ID:        id,
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		err = s.repo.Create(ctx, sess)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
	return nil, ErrDuplicate
}

// Resolve returns the live session for id. When less than half of the TTL
// remains the expiry is pushed out by a full TTL and renewed is true.
func (s *Service) Resolve(ctx context.Context, id string) (sess *Session, renewed bool, err error) {
	if id == "" {
		return nil, false, ErrNotFound
	}
	sess, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	now := s.now().UTC()
	if sess.Expired(now) {
		_ = s.repo.Delete(ctx, id)
		return nil, false, ErrNotFound
	}
	if sess.ExpiresAt.Sub(now) >= s.ttl/2 {
		return sess, false, nil
	}
	next := now.Add(s.ttl)
	if err := s.repo.Touch(ctx, id, next); err != nil {
		return nil, false, err
	}
	sess.ExpiresAt = next
	return sess, true, nil
}

// DeleteSession removes the session; unknown ids are ignored.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.repo.Delete(ctx, id)
}
