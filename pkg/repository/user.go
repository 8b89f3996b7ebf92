package repository

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Get loads a user by id.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Email returns the address notifications for userID go to.
func (r *UserRepository) Email(ctx context.Context, id string) (string, error) {
	user, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}
