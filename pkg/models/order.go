package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPaid      OrderStatus = "Paid"
	StatusShipped   OrderStatus = "Shipped"
	StatusCompleted OrderStatus = "Completed"
	StatusCanceled  OrderStatus = "Canceled"
)

// ParseOrderStatus reports whether s names a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case StatusPending, StatusPaid, StatusShipped, StatusCompleted, StatusCanceled:
		return OrderStatus(s), true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

func (s OrderStatus) String() string {
	return string(s)
}

// PaymentMethod is how the buyer pays.
type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
	PaymentCOD    PaymentMethod = "cod"
)

// ParsePaymentMethod accepts card, wallet and cod.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCard, PaymentWallet, PaymentCOD:
		return PaymentMethod(s), true
	}
	return "", false
}

// Order is the persisted snapshot of a checked-out cart. Totals are written
// once at creation and never recomputed.
type Order struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	UserID            *string          `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	ShippingAddressID *uint            `gorm:"index" json:"shipping_address_id,omitempty"`
	ShippingAddress   *ShippingAddress `gorm:"foreignKey:ShippingAddressID;constraint:OnDelete:SET NULL" json:"shipping_address,omitempty"`
	Items             []OrderItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	ShippingFee decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"shipping_fee"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax_amount"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_price"`

	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`

	// A provider payment places at most one order.
	CardPaymentRef      *string `gorm:"type:varchar(255);uniqueIndex" json:"card_payment_ref,omitempty"`
	WalletTransactionID *string `gorm:"type:varchar(255);uniqueIndex" json:"wallet_transaction_id,omitempty"`
	CODConfirmed        bool    `gorm:"column:cod_confirmed;not null" json:"cod_confirmed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// CanTransitionTo reports whether an administrative status change is allowed.
// Cash-on-delivery orders are paid at the door, so they may ship straight
// from Pending.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	switch o.Status {
	case StatusPending:
		switch next {
		case StatusPaid, StatusCanceled:
			return true
		case StatusShipped:
			return o.PaymentMethod == PaymentCOD
		}
	case StatusPaid:
		return next == StatusShipped || next == StatusCanceled
	case StatusShipped:
		return next == StatusCompleted
	}
	return false
}

// TotalsConsistent checks subtotal + shipping + tax == total.
func (o *Order) TotalsConsistent() bool {
	return o.Subtotal.Add(o.ShippingFee).Add(o.TaxAmount).Equal(o.TotalPrice)
}

// OwnedBy reports whether the order belongs to the user.
func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID != nil && *o.UserID == userID
}

// OrderItem is one purchased line. UnitPrice is fixed when the order is placed.
type OrderItem struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	OrderID   uint     `gorm:"not null;index" json:"order_id"`
	ProductID *uint    `gorm:"index" json:"product_id,omitempty"`
	Product   *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:SET NULL" json:"-"`
	// ProductName keeps invoices readable after the product is deleted.
	ProductName string          `gorm:"type:varchar(255)" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal is UnitPrice times Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}
