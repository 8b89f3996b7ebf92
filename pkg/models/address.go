package models

import "time"

// ShippingAddress belongs to a user, or to nobody for guest checkouts.
type ShippingAddress struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      *string   `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	FullName    string    `gorm:"type:varchar(255);not null" json:"full_name"`
	Email       *string   `gorm:"type:varchar(254)" json:"email,omitempty"`
	AddressLine string    `gorm:"type:varchar(255);not null" json:"address_line"`
	City        string    `gorm:"type:varchar(100);not null" json:"city"`
	PostalCode  string    `gorm:"type:varchar(20);not null" json:"postal_code"`
	Country     string    `gorm:"type:varchar(100);not null" json:"country"`
	IsDefault   bool      `gorm:"not null" json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ShippingAddress) TableName() string {
	return "shipping_addresses"
}

// OwnedBy reports whether the address belongs to the user.
func (a *ShippingAddress) OwnedBy(userID string) bool {
	return userID != "" && a.UserID != nil && *a.UserID == userID
}
