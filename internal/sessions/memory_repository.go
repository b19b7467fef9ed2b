package sessions

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps sessions in process memory. Used when neither Redis
// nor Mongo is configured, and in tests.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]Session
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Session{}, now: time.Now}
}

func (m *MemoryRepository) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[s.ID]; ok && !cur.Expired(m.now()) {
		return ErrDuplicate
	}
	m.items[s.ID] = *s
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired(m.now()) {
		delete(m.items, id)
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) Touch(_ context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok || s.Expired(m.now()) {
		delete(m.items, id)
		return ErrNotFound
	}
	s.ExpiresAt = expiresAt
	m.items[id] = s
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
