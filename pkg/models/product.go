package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price is the current selling price.
type Product struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock     int             `gorm:"not null" json:"stock"`
	Available bool            `gorm:"not null" json:"available"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// InStock reports whether the product can be sold right now.
func (p Product) InStock() bool {
	return p.Available && p.Stock > 0
}
