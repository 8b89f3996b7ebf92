package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		from   OrderStatus
		method PaymentMethod
		to     OrderStatus
		want   bool
	}{
		{"pending to paid", StatusPending, PaymentCOD, StatusPaid, true},
		{"pending to canceled", StatusPending, PaymentCard, StatusCanceled, true},
		{"cod pending ships", StatusPending, PaymentCOD, StatusShipped, true},
		{"card pending cannot ship", StatusPending, PaymentCard, StatusShipped, false},
		{"paid to shipped", StatusPaid, PaymentCard, StatusShipped, true},
		{"paid to canceled", StatusPaid, PaymentWallet, StatusCanceled, true},
		{"paid to completed skips shipping", StatusPaid, PaymentCard, StatusCompleted, false},
		{"shipped to completed", StatusShipped, PaymentCard, StatusCompleted, true},
		{"shipped cannot cancel", StatusShipped, PaymentCard, StatusCanceled, false},
		{"completed is terminal", StatusCompleted, PaymentCard, StatusShipped, false},
		{"canceled is terminal", StatusCanceled, PaymentCOD, StatusPending, false},
		{"no self transition", StatusPaid, PaymentCard, StatusPaid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.from, PaymentMethod: tt.method}
			assert.Equal(t, tt.want, o.CanTransitionTo(tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusPaid.IsTerminal())
	assert.False(t, StatusShipped.IsTerminal())
}

func TestParse(t *testing.T) {
	s, ok := ParseOrderStatus("Shipped")
	assert.True(t, ok)
	assert.Equal(t, StatusShipped, s)
	_, ok = ParseOrderStatus("shipped")
	assert.False(t, ok)

	m, ok := ParsePaymentMethod("wallet")
	assert.True(t, ok)
	assert.Equal(t, PaymentWallet, m)
	_, ok = ParsePaymentMethod("bitcoin")
	assert.False(t, ok)
}

func TestOrderItemLineTotal(t *testing.T) {
	item := OrderItem{Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	assert.Equal(t, "59.97", item.LineTotal().StringFixed(2))
}

func TestTotalsConsistent(t *testing.T) {
	o := &Order{
		Subtotal:    decimal.RequireFromString("45.00"),
		ShippingFee: decimal.RequireFromString("10.00"),
		TaxAmount:   decimal.RequireFromString("4.50"),
		TotalPrice:  decimal.RequireFromString("59.50"),
	}
	assert.True(t, o.TotalsConsistent())
	o.TotalPrice = decimal.RequireFromString("59.49")
	assert.False(t, o.TotalsConsistent())
}

func TestOwnedBy(t *testing.T) {
	uid := "u-1"
	o := &Order{UserID: &uid}
	assert.True(t, o.OwnedBy("u-1"))
	assert.False(t, o.OwnedBy("u-2"))
	assert.False(t, o.OwnedBy(""))
	assert.False(t, (&Order{}).OwnedBy("u-1"))
}
