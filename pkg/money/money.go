// Package money holds the fixed-point helpers used for every currency amount.
// All stored amounts carry two decimal places.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const Scale = 2

var hundred = decimal.NewFromInt(100)

// Round rounds to two decimal places, half away from zero. Amounts are never
// negative, so this is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Format renders an amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Parse reads a non-negative amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid amount %q: negative", s)
	}
	return Round(d), nil
}

// LineTotal is unit price times quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return Round(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// MinorUnits converts an amount to integer cents.
func MinorUnits(d decimal.Decimal) int64 {
	return Round(d).Mul(hundred).IntPart()
}
