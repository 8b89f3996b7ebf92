package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products map[uint]models.Product
	err      error
	calls    int
}

func (f *fakeCatalog) GetProducts(_ context.Context, ids []uint) (map[uint]models.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[uint]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func product(id uint, price string) models.Product {
	return models.Product{ID: id, Name: "product", Price: decimal.RequireFromString(price), Stock: 10, Available: true}
}

func newCatalog(ps ...models.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[uint]models.Product)}
	for _, p := range ps {
		c.products[p.ID] = p
	}
	return c
}

func TestAdd_Accumulates(t *testing.T) {
	c := New()
	p := product(1, "3.00")

	c.Add(p, 2, false)
	c.Add(p, 3, false)

	assert.Equal(t, 5, c.Quantity(1))
	assert.Len(t, c.Items, 1)
	assert.True(t, c.Dirty())
}

func TestAdd_Override(t *testing.T) {
	c := New()
	p := product(1, "3.00")

	c.Add(p, 5, true)
	c.Add(p, 2, true)

	assert.Equal(t, 2, c.Quantity(1))
}

func TestAdd_CoercesQuantity(t *testing.T) {
	c := New()
	c.Add(product(1, "1.00"), 0, false)
	c.Add(product(2, "1.00"), -4, false)

	assert.Equal(t, 1, c.Quantity(1))
	assert.Equal(t, 1, c.Quantity(2))
}

func TestUpdate_ZeroRemoves(t *testing.T) {
	c := New()
	p := product(1, "1.00")
	c.Add(p, 3, false)

	c.Update(p, 7)
	assert.Equal(t, 7, c.Quantity(1))

	c.Update(p, 0)
	assert.True(t, c.IsEmpty())
	_, ok := c.Items[1]
	assert.False(t, ok, "no zero-quantity entry is kept")
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	c := New()
	c.Add(product(1, "1.00"), 1, false)
	c.dirty = false

	c.Remove(99)

	assert.Equal(t, 1, c.Quantity(1))
	assert.False(t, c.Dirty())
}

func TestClear(t *testing.T) {
	c := New()
	c.Add(product(1, "1.00"), 1, false)
	c.Add(product(2, "1.00"), 2, false)

	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, c.Count())
}

func TestCount(t *testing.T) {
	c := New()
	c.Add(product(1, "1.00"), 2, false)
	c.Add(product(2, "1.00"), 3, false)
	assert.Equal(t, 5, c.Count())
}

func TestTotals_Example(t *testing.T) {
	a, b := product(1, "20.00"), product(2, "5.00")
	c := New()
	c.Add(a, 2, false)
	c.Add(b, 1, false)

	lines, err := c.Lines(context.Background(), newCatalog(a, b))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "40.00", lines[0].Total.StringFixed(2))

	totals := DefaultPricing().Totals(lines)
	assert.Equal(t, "45.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "10.00", totals.Shipping.StringFixed(2))
	assert.Equal(t, "4.50", totals.Tax.StringFixed(2))
	assert.Equal(t, "59.50", totals.Total.StringFixed(2))
}

func TestTotals_EmptyCart(t *testing.T) {
	totals := DefaultPricing().Totals(nil)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestTotals_SumHoldsAfterRounding(t *testing.T) {
	prices := []string{"0.01", "0.05", "0.15", "1.99", "3.33", "7.77", "19.95", "104.45"}
	pricing := DefaultPricing()
	for _, price := range prices {
		for qty := 1; qty <= 7; qty++ {
			p := product(1, price)
			c := New()
			c.Add(p, qty, false)

			lines, err := c.Lines(context.Background(), newCatalog(p))
			require.NoError(t, err)
			totals := pricing.Totals(lines)

			assert.True(t, totals.Subtotal.Add(totals.Shipping).Add(totals.Tax).Equal(totals.Total), "%s x %d", price, qty)
			assert.Equal(t, "10.00", totals.Shipping.StringFixed(2))
			assert.True(t, totals.Tax.Equal(totals.Tax.Round(2)))
		}
	}
}

func TestLines_SkipsDeletedProducts(t *testing.T) {
	a, b := product(1, "20.00"), product(2, "5.00")
	c := New()
	c.Add(a, 1, false)
	c.Add(b, 1, false)

	catalog := newCatalog(a)
	lines, err := c.Lines(context.Background(), catalog)
	require.NoError(t, err)

	require.Len(t, lines, 1)
	assert.Equal(t, uint(1), lines[0].Product.ID)
	assert.Equal(t, []uint{2}, c.Unresolved(lines))
}

func TestLines_UsesLivePrice(t *testing.T) {
	a := product(1, "20.00")
	c := New()
	c.Add(a, 2, false)
	catalog := newCatalog(a)

	first, err := c.Lines(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, "40.00", first[0].Total.StringFixed(2))

	catalog.products[1] = product(1, "25.00")
	second, err := c.Lines(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, "50.00", second[0].Total.StringFixed(2))
	assert.Equal(t, 2, catalog.calls)
}

func TestLines_CatalogError(t *testing.T) {
	c := New()
	c.Add(product(1, "1.00"), 1, false)

	_, err := c.Lines(context.Background(), &fakeCatalog{err: errors.New("db down")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load cart products")
}

func TestSummary(t *testing.T) {
	totals := Totals{
		Subtotal: decimal.RequireFromString("45"),
		Shipping: decimal.RequireFromString("10"),
		Tax:      decimal.RequireFromString("4.5"),
		Total:    decimal.RequireFromString("59.5"),
	}
	s := totals.Summary(3)
	assert.Equal(t, Summary{Subtotal: "45.00", Shipping: "10.00", Tax: "4.50", Total: "59.50", Count: 3}, s)
}

func TestSession_RoundTripKeepsCart(t *testing.T) {
	s := NewSession("abc")
	s.Cart.Add(product(7, "2.50"), 4, false)
	s.RememberOrder(11)
	s.RememberOrder(11)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	decoded.Normalize()

	assert.Equal(t, 4, decoded.Cart.Quantity(7))
	assert.Equal(t, []uint{11}, decoded.OrderIDs)
	assert.True(t, decoded.OwnsOrder(11))
	assert.False(t, decoded.Dirty())
}

func TestSession_DirtyTracking(t *testing.T) {
	s := NewSession("abc")
	assert.False(t, s.Dirty())

	s.Cart.Add(product(1, "1.00"), 1, false)
	assert.True(t, s.Dirty())

	s.Saved()
	assert.False(t, s.Dirty())

	id := uint(3)
	s.SetAddress(&id)
	assert.True(t, s.Dirty())
}
