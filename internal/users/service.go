package users

import (
	"context"
	"strings"
	"time"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/models"
	"github.com/google/uuid"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	now  func() time.Time
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, now: time.Now}
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create assigns an id and timestamps and inserts the user. A uniqueness
// violation is reported as ErrDuplicate by the repository.
func (s *Service) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *Service) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.repo.GetByGoogleID(ctx, googleID)
}
