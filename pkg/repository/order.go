package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository on db.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create writes the order and all of its items in one transaction. Either
// everything is committed or nothing is. If the insert fails because the
// order's payment reference is already taken, the stored order is copied
// into order and ErrAlreadyPlaced is returned.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	items := order.Items

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}
		return nil
	})
	if err != nil {
		order.ID = 0
		if existing, lookupErr := r.placedForPayment(ctx, order); lookupErr == nil {
			*order = *existing
			return ErrAlreadyPlaced
		}
		return err
	}

	order.Items = items
	return nil
}

func (r *OrderRepository) placedForPayment(ctx context.Context, order *models.Order) (*models.Order, error) {
	q := r.withDetails(r.db.WithContext(ctx))
	switch {
	case order.CardPaymentRef != nil:
		q = q.Where("card_payment_ref = ?", *order.CardPaymentRef)
	case order.WalletTransactionID != nil:
		q = q.Where("wallet_transaction_id = ?", *order.WalletTransactionID)
	default:
		return nil, ErrNotFound
	}

	var existing models.Order
	if err := q.First(&existing).Error; err != nil {
		return nil, notFound(err)
	}
	return &existing, nil
}

// Get loads an order with its items and shipping address.
func (r *OrderRepository) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.withDetails(r.db.WithContext(ctx)).First(&order, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// ListForUser pages through a user's orders, newest first.
func (r *OrderRepository) ListForUser(ctx context.Context, userID string, page, pageSize int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	}
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.withDetails(base()).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// LatestForUser returns the user's most recent order.
func (r *OrderRepository) LatestForUser(ctx context.Context, userID string) (*models.Order, error) {
	var order models.Order
	err := r.withDetails(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// UpdateStatus moves the order from one status to another. It fails with
// ErrStaleStatus when the stored status is no longer from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ConfirmCOD marks a cash on delivery order as confirmed. Confirming twice
// is not an error.
func (r *OrderRepository) ConfirmCOD(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_method = ?", id, models.PaymentCOD).
		Updates(map[string]interface{}{
			"cod_confirmed": true,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("ShippingAddress")
}
