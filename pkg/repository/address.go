package repository

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
)

type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// ListForUser returns the user's saved addresses, default first, then newest.
func (r *AddressRepository) ListForUser(ctx context.Context, userID string) ([]models.ShippingAddress, error) {
	var addresses []models.ShippingAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").Order("id DESC").
		Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// Get loads one address.
func (r *AddressRepository) Get(ctx context.Context, id uint) (*models.ShippingAddress, error) {
	var address models.ShippingAddress
	if err := r.db.WithContext(ctx).First(&address, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &address, nil
}

// Create stores the address. A new default address clears the flag on the
// owner's other addresses.
func (r *AddressRepository) Create(ctx context.Context, address *models.ShippingAddress) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if address.IsDefault && address.UserID != nil {
			err := tx.Model(&models.ShippingAddress{}).
				Where("user_id = ? AND is_default = ?", *address.UserID, true).
				Update("is_default", false).Error
			if err != nil {
				return fmt.Errorf("failed to reset default address: %w", err)
			}
		}
		if err := tx.Create(address).Error; err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		return nil
	})
}

// Delete removes an address owned by userID. Orders that shipped to it keep
// existing with a null address reference.
func (r *AddressRepository) Delete(ctx context.Context, id uint, userID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.ShippingAddress{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
