package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

type mapDirectory map[string]string

func (d mapDirectory) Email(_ context.Context, id string) (string, error) {
	if e, ok := d[id]; ok {
		return e, nil
	}
	return "", errors.New("not found")
}

func testOrder() *models.Order {
	return &models.Order{
		ID:            12,
		Status:        models.StatusPaid,
		PaymentMethod: models.PaymentCard,
		Subtotal:      decimal.RequireFromString("45.00"),
		ShippingFee:   decimal.RequireFromString("10.00"),
		TaxAmount:     decimal.RequireFromString("4.50"),
		TotalPrice:    decimal.RequireFromString("59.50"),
		Items: []models.OrderItem{
			{ProductName: "Lamp", Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
			{ProductName: "Bulb", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}
}

func TestActorNotifier_UsesAccountEmail(t *testing.T) {
	sender := &recordingSender{}
	n, err := NewActorNotifier(sender, mapDirectory{"u-1": "ada@example.com"}, zap.NewNop())
	require.NoError(t, err)

	order := testOrder()
	uid := "u-1"
	order.UserID = &uid
	n.Send(order, OrderPlaced)
	order.Status = models.StatusCanceled

	require.NoError(t, n.Close())

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].To)
	assert.Equal(t, "Your Order has been Placed!", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Status: Paid")
}

func TestActorNotifier_FallsBackToAddressEmail(t *testing.T) {
	sender := &recordingSender{}
	n, err := NewActorNotifier(sender, mapDirectory{}, zap.NewNop())
	require.NoError(t, err)

	order := testOrder()
	email := "guest@example.com"
	order.ShippingAddress = &models.ShippingAddress{FullName: "Guest", Email: &email}
	n.Send(order, OrderShipped)
	require.NoError(t, n.Close())

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "guest@example.com", sent[0].To)
	assert.Equal(t, OrderShipped, sent[0].Kind)
}

func TestActorNotifier_SkipsWithoutRecipient(t *testing.T) {
	sender := &recordingSender{}
	n, err := NewActorNotifier(sender, nil, zap.NewNop())
	require.NoError(t, err)

	n.Send(testOrder(), OrderPlaced)
	require.NoError(t, n.Close())

	assert.Empty(t, sender.messages())
}

func TestActorNotifier_SenderFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	n, err := NewActorNotifier(sender, mapDirectory{"u-1": "ada@example.com"}, zap.NewNop())
	require.NoError(t, err)

	order := testOrder()
	uid := "u-1"
	order.UserID = &uid
	assert.NotPanics(t, func() { n.Send(order, OrderPlaced) })
	require.NoError(t, n.Close())
}

func TestRender(t *testing.T) {
	m := Render(testOrder(), OrderCompleted)
	assert.Equal(t, "Your Order has been Delivered!", m.Subject)
	assert.Contains(t, m.Body, "Order #12")
	assert.Contains(t, m.Body, "40.00")
	assert.Contains(t, m.Body, "Total:    59.50")
}

func TestKindForStatus(t *testing.T) {
	k, ok := KindForStatus(models.StatusShipped)
	assert.True(t, ok)
	assert.Equal(t, OrderShipped, k)

	_, ok = KindForStatus(models.StatusPaid)
	assert.False(t, ok)
}
