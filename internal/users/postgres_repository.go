package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/models"
	"gorm.io/gorm"
)

// PostgresUserRepository implements UserRepository on top of gorm.
// The gorm handle must be opened with TranslateError enabled so unique
// violations surface as gorm.ErrDuplicatedKey.
type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Migrate creates the users table with its unique indexes.
func (r *PostgresUserRepository) Migrate() error {
	return r.db.AutoMigrate(&models.User{})
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return mapGormError(err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *PostgresUserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.first(ctx, "google_id = ?", googleID)
}

func (r *PostgresUserRepository) first(ctx context.Context, query string, arg string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &u, nil
}

func mapGormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return fmt.Errorf("postgres users: %w", err)
	}
}

// Ping checks the underlying connection pool.
func (r *PostgresUserRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
