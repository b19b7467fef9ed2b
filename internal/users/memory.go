package users

import (
	"context"
	"sync"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/models"
)

// MemoryUserRepository is an in-process UserRepository for development and tests.
// A single mutex makes the uniqueness check and the insert one atomic step.
type MemoryUserRepository struct {
	mu       sync.RWMutex
	byID     map[string]*models.User
	byEmail  map[string]string
	byGoogle map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:     map[string]*models.User{},
		byEmail:  map[string]string{},
		byGoogle: map[string]string{},
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; ok {
		return ErrDuplicate
	}
	if u.Email != "" {
		if _, ok := r.byEmail[u.Email]; ok {
			return ErrDuplicate
		}
	}
	if u.GoogleID != nil {
		if _, ok := r.byGoogle[*u.GoogleID]; ok {
			return ErrDuplicate
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	if u.Email != "" {
		r.byEmail[u.Email] = u.ID
	}
	if u.GoogleID != nil {
		r.byGoogle[*u.GoogleID] = u.ID
	}
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(id)
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(r.byEmail[email])
}

func (r *MemoryUserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(r.byGoogle[googleID])
}

// Delete removes a user. Only used by tests to simulate a vanished principal.
func (r *MemoryUserRepository) Delete(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	if u.GoogleID != nil {
		delete(r.byGoogle, *u.GoogleID)
	}
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// caller holds r.mu
func (r *MemoryUserRepository) copyOf(id string) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}
