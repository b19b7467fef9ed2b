// Package credentials implements password signup and login on top of the
// user store, the password hasher and the token service.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/models"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/passwords"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/users"
)

var (
	ErrValidation         = errors.New("all fields are required")
	ErrConflict           = errors.New("user already exists")
	ErrNotFound           = errors.New("user does not exist")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPasswordTooLong also matches ErrValidation.
	ErrPasswordTooLong = fmt.Errorf("%w: password longer than %d bytes", ErrValidation, passwords.MaxLength)
)

// Store is the subset of the user service the credential flows need.
type Store interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Issuer mints bearer tokens for a user id.
type Issuer interface {
	Issue(userID string) (string, error)
}

type SignupInput struct {
	Name     string
	Email    string
	City     string
	Region   string
	Password string
}

// Result is a successful signup or login.
type Result struct {
	User  *models.User
	Token string
}

type Service struct {
	store  Store
	hasher Hasher
	issuer Issuer
	// compared against on unknown emails so both login failures cost one bcrypt run
	dummyHash string
}

func NewService(store Store, hasher Hasher, issuer Issuer) (*Service, error) {
	dummy, err := hasher.Hash("cropadvisor-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Service{store: store, hasher: hasher, issuer: issuer, dummyHash: dummy}, nil
}

func validatePassword(pw string) error {
	if pw == "" {
		return ErrValidation
	}
	if len(pw) > passwords.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

// Signup creates a password account and issues its first token. The email
// pre-check is advisory; the store's unique index decides a race.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = users.NormalizeEmail(in.Email)
	in.City = strings.TrimSpace(in.City)
	in.Region = strings.TrimSpace(in.Region)
	if in.Name == "" || in.Email == "" || in.City == "" || in.Region == "" {
		return nil, ErrValidation
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.store.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Create(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		City:         in.City,
		Region:       in.Region,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, users.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	tok, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Result{User: u, Token: tok}, nil
}

// Login checks email and password and issues a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = users.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if !u.HasPassword() {
		// OAuth-only account
		s.hasher.Verify(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	tok, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Result{User: u, Token: tok}, nil
}
