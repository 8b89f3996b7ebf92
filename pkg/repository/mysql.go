package repository

import (
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrStaleStatus = errors.New("order status changed concurrently")
	// ErrAlreadyPlaced is returned by OrderRepository.Create when an order
	// for the same provider payment exists. The existing order is loaded
	// into the argument.
	ErrAlreadyPlaced = errors.New("order already placed for this payment")
)

// OpenMySQL connects to MySQL and applies the pool settings.
func OpenMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return db, nil
}

// Migrate creates or updates every table the storefront owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ShippingAddress{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
