package cart

import (
	"github.com/example/storefront/pkg/money"
	"github.com/shopspring/decimal"
)

// Pricing holds the shop-wide charges added on top of the cart subtotal.
type Pricing struct {
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal
}

// DefaultPricing charges a flat 10.00 shipping fee and 10% tax.
func DefaultPricing() Pricing {
	return Pricing{
		ShippingFee: decimal.RequireFromString("10.00"),
		TaxRate:     decimal.RequireFromString("0.10"),
	}
}

// Totals are rounded to cents before they are summed, so the stored
// Subtotal + Shipping + Tax always equals Total.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Totals prices the given lines. Shipping is charged only when there is at
// least one line.
func (p Pricing) Totals(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total)
	}
	subtotal = money.Round(subtotal)

	shipping := decimal.Zero
	if len(lines) > 0 {
		shipping = money.Round(p.ShippingFee)
	}
	tax := money.Round(subtotal.Mul(p.TaxRate))

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// Summary is the JSON shape of cart totals.
type Summary struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

// Summary formats the totals for responses.
func (t Totals) Summary(count int) Summary {
	return Summary{
		Subtotal: money.Format(t.Subtotal),
		Shipping: money.Format(t.Shipping),
		Tax:      money.Format(t.Tax),
		Total:    money.Format(t.Total),
		Count:    count,
	}
}
