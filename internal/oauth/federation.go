package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/models"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/users"
)

// UserStore is the part of the user service federation needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
}

// Federation maps provider profiles to local accounts and back.
type Federation struct {
	users UserStore
}

func NewFederation(u UserStore) *Federation {
	return &Federation{users: u}
}

// Resolve finds the account linked to the profile's provider id or creates
// one, then hands the result to done. Existing password accounts with the
// same email are never linked; the new account is created without an email.
func (f *Federation) Resolve(ctx context.Context, p *Profile, done func(*models.User, error)) {
	done(f.resolve(ctx, p))
}

func (f *Federation) resolve(ctx context.Context, p *Profile) (*models.User, error) {
	if p == nil || p.ID == "" {
		return nil, fmt.Errorf("%w: empty profile", ErrFederation)
	}
	u, err := f.users.GetByGoogleID(ctx, p.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("lookup provider id: %w", err)
	}

	email := users.NormalizeEmail(p.Email)
	u, err = f.create(ctx, p, email)
	if !errors.Is(err, users.ErrDuplicate) {
		return u, err
	}
	// a concurrent callback for the same provider id won the insert
	if u, err := f.users.GetByGoogleID(ctx, p.ID); err == nil {
		return u, nil
	}
	if email == "" {
		return nil, fmt.Errorf("create federated user: %w", users.ErrDuplicate)
	}
	// the email belongs to another account
	u, err = f.create(ctx, p, "")
	if errors.Is(err, users.ErrDuplicate) {
		return f.users.GetByGoogleID(ctx, p.ID)
	}
	return u, err
}

func (f *Federation) create(ctx context.Context, p *Profile, email string) (*models.User, error) {
	gid := p.ID
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = email
	}
	return f.users.Create(ctx, &models.User{Name: name, Email: email, GoogleID: &gid})
}

// Serialize reduces a principal to the reference stored in the session.
func (f *Federation) Serialize(u *models.User) string {
	return u.ID
}

// Deserialize loads the principal behind a session reference. users.ErrNotFound
// means the account is gone and the session must be dropped.
func (f *Federation) Deserialize(ctx context.Context, id string) (*models.User, error) {
	return f.users.GetByID(ctx, id)
}
