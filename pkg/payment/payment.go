// Package payment implements the payment methods offered at checkout. Each
// method is a Strategy selected by the order's payment method.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/models"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrRejected           = errors.New("payment gateway rejected the request")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
)

// Outcome is the result of authorizing a payment.
type Outcome string

const (
	Authorized Outcome = "authorized"
	Declined   Outcome = "declined"
)

// Draft is the priced cart a payment is requested for.
type Draft struct {
	Lines      []cart.Line
	Totals     cart.Totals
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Redirect sends the buyer to the provider. Reference identifies the
// provider-side payment and comes back in the callback.
type Redirect struct {
	URL       string
	Reference string
}

// Callback carries what the provider hands back when the buyer returns.
type Callback struct {
	Reference string
	PayerID   string
}

// Authorization is what a strategy reports after the buyer returns.
type Authorization struct {
	Outcome Outcome
	// Reference is the provider's id for the captured payment.
	Reference string
	Reason    string
}

// OK reports whether the payment was authorized.
func (a Authorization) OK() bool {
	return a.Outcome == Authorized
}

// Strategy is one way of paying for an order.
type Strategy interface {
	Method() models.PaymentMethod
	// Begin starts the provider flow. A nil Redirect means the method needs
	// no external step and can be authorized right away.
	Begin(ctx context.Context, draft Draft) (*Redirect, error)
	Authorize(ctx context.Context, draft Draft, cb Callback) (Authorization, error)
}

// Registry holds the strategies enabled for this shop.
type Registry struct {
	strategies map[models.PaymentMethod]Strategy
}

// NewRegistry indexes strategies by the method they implement.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[models.PaymentMethod]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Method()] = s
	}
	return r
}

// Select returns the strategy for method, or ErrUnsupportedMethod.
func (r *Registry) Select(method models.PaymentMethod) (Strategy, error) {
	s, ok := r.strategies[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	return s, nil
}

// CashOnDelivery collects payment at the door, so nothing is charged at
// checkout.
type CashOnDelivery struct{}

func (CashOnDelivery) Method() models.PaymentMethod { return models.PaymentCOD }

func (CashOnDelivery) Begin(context.Context, Draft) (*Redirect, error) { return nil, nil }

func (CashOnDelivery) Authorize(context.Context, Draft, Callback) (Authorization, error) {
	return Authorization{Outcome: Authorized}, nil
}
