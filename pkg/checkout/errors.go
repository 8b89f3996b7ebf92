package checkout

import (
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrNotFound            = errors.New("not found")
	ErrInvalidAddress      = errors.New("invalid shipping address")
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrUnavailableProducts = errors.New("cart contains unavailable products")
	ErrNoPendingPayment    = errors.New("no payment in progress")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrPaymentUnavailable  = errors.New("payment service unavailable")
	ErrInvalidTransition   = errors.New("invalid order status transition")
)

// UnavailableError lists the cart products that cannot be ordered.
type UnavailableError struct {
	ProductIDs []uint
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnavailableProducts, e.ProductIDs)
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailableProducts
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// gatewayError converts a payment strategy failure into a checkout error.
func gatewayError(err error) error {
	switch {
	case errors.Is(err, payment.ErrRejected):
		return fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	case errors.Is(err, payment.ErrUnsupportedMethod):
		return fmt.Errorf("%w: %v", ErrInvalidMethod, err)
	default:
		return fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
}
