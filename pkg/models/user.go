package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the account record behind an authenticated identity. The storefront
// only reads it to address order notifications.
type User struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string         `gorm:"type:varchar(100);not null" json:"name"`
	Email     string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	IsStaff   bool           `gorm:"not null" json:"is_staff"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
