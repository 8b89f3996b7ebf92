package cart

import (
	"context"
	"errors"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/shopspring/decimal"
)

var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions between requests.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// PendingPayment is an external payment that was started but not yet
// confirmed by the provider.
type PendingPayment struct {
	Method    models.PaymentMethod `json:"method"`
	Reference string               `json:"reference"`
	AddressID *uint                `json:"address_id,omitempty"`
	StartedAt time.Time            `json:"started_at"`

	// Lines and Totals are what the provider was asked to charge. The order
	// is built from them, not from the cart as it is at confirmation time.
	Lines  []PendingLine `json:"lines"`
	Totals Totals        `json:"totals"`
}

// PendingLine is one cart line as priced when the payment started.
type PendingLine struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Snapshot records priced lines for a pending payment.
func Snapshot(lines []Line) []PendingLine {
	out := make([]PendingLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, PendingLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return out
}

// PricedLines returns the snapshot as cart lines carrying the prices that
// were charged.
func (p *PendingPayment) PricedLines() []Line {
	out := make([]Line, 0, len(p.Lines))
	for _, l := range p.Lines {
		out = append(out, Line{
			Product:   models.Product{ID: l.ProductID, Name: l.Name, Price: l.UnitPrice},
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Total:     money.LineTotal(l.UnitPrice, l.Quantity),
		})
	}
	return out
}

// Session is the request-scoped state for one browser: its cart, the chosen
// shipping address, an in-flight payment and the guest orders it placed.
type Session struct {
	ID        string          `json:"id"`
	Cart      *Cart           `json:"cart"`
	AddressID *uint           `json:"address_id,omitempty"`
	Pending   *PendingPayment `json:"pending,omitempty"`
	OrderIDs  []uint          `json:"order_ids,omitempty"`
	// Placed maps provider payment references to the orders they placed.
	Placed map[string]uint `json:"placed,omitempty"`

	dirty bool
}

// NewSession returns an empty session.
func NewSession(id string) *Session {
	return &Session{ID: id, Cart: New()}
}

// Normalize fills fields that may be absent after decoding.
func (s *Session) Normalize() {
	if s.Cart == nil {
		s.Cart = New()
	}
	s.Cart.ensure()
}

// MarkDirty flags the session for saving.
func (s *Session) MarkDirty() {
	s.dirty = true
}

// Dirty reports whether the session or its cart changed since the last save.
func (s *Session) Dirty() bool {
	return s.dirty || (s.Cart != nil && s.Cart.Dirty())
}

// Saved resets dirty tracking after a successful Store.Save.
func (s *Session) Saved() {
	s.dirty = false
	if s.Cart != nil {
		s.Cart.dirty = false
	}
}

// SetAddress records the chosen shipping address.
func (s *Session) SetAddress(id *uint) {
	s.AddressID = id
	s.MarkDirty()
}

// SetPending replaces the in-flight payment. Nil clears it.
func (s *Session) SetPending(p *PendingPayment) {
	s.Pending = p
	s.MarkDirty()
}

// RememberOrder records a guest order placed from this session.
func (s *Session) RememberOrder(id uint) {
	for _, existing := range s.OrderIDs {
		if existing == id {
			return
		}
	}
	s.OrderIDs = append(s.OrderIDs, id)
	s.MarkDirty()
}

// RememberPayment records that the payment identified by reference placed
// the given order.
func (s *Session) RememberPayment(reference string, orderID uint) {
	if s.Placed == nil {
		s.Placed = make(map[string]uint)
	}
	s.Placed[reference] = orderID
	s.MarkDirty()
}

// OrderForPayment returns the order placed by reference in this session.
func (s *Session) OrderForPayment(reference string) (uint, bool) {
	id, ok := s.Placed[reference]
	return id, ok
}

// OwnsOrder reports whether this session placed the order.
func (s *Session) OwnsOrder(id uint) bool {
	for _, existing := range s.OrderIDs {
		if existing == id {
			return true
		}
	}
	return false
}
