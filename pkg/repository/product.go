package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductRepository is the catalog view the cart and checkout read from.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Get loads one product.
func (r *ProductRepository) Get(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// GetProducts returns the products that still exist, keyed by id.
func (r *ProductRepository) GetProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	out := make(map[uint]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// List pages through the catalog ordered by id.
func (r *ProductRepository) List(ctx context.Context, page, pageSize int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Product{}).Where("available = ?", true)
	}
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := base().Order("id").Offset(offset).Limit(pageSize).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// UpdatePrice changes a product's price. Orders already placed keep their own.
func (r *ProductRepository) UpdatePrice(ctx context.Context, id uint, price decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{"price": price, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the product for good; order items keep their rows with a
// null product reference.
func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
