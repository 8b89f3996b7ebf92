// Package cart holds the per-session shopping cart and its pricing rules.
package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/shopspring/decimal"
)

// Catalog resolves live product records for cart lines.
type Catalog interface {
	GetProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error)
}

// LineItem is what the session keeps per product. UnitPrice is the price
// seen when the product was added; priced lines always use the live price.
type LineItem struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Line is a cart entry joined with its live product record.
type Line struct {
	Product   models.Product
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Cart maps product ids to quantities for one session.
type Cart struct {
	Items map[uint]*LineItem `json:"items"`

	dirty bool
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{Items: make(map[uint]*LineItem)}
}

// Add inserts the product or raises its quantity. With override the quantity
// replaces the current one. Quantities below one are treated as one.
func (c *Cart) Add(product models.Product, quantity int, override bool) {
	if quantity < 1 {
		quantity = 1
	}
	c.ensure()

	item, ok := c.Items[product.ID]
	if !ok {
		item = &LineItem{ProductID: product.ID}
		c.Items[product.ID] = item
	}
	if override || !ok {
		item.Quantity = quantity
	} else {
		item.Quantity += quantity
	}
	item.UnitPrice = money.Round(product.Price)

	c.MarkDirty()
}

// Update sets the quantity of a product; zero or less removes it.
func (c *Cart) Update(product models.Product, quantity int) {
	if quantity <= 0 {
		c.Remove(product.ID)
		return
	}
	c.Add(product, quantity, true)
}

// Remove deletes the product entry. Removing an absent product does nothing.
func (c *Cart) Remove(productID uint) {
	if _, ok := c.Items[productID]; !ok {
		return
	}
	delete(c.Items, productID)
	c.MarkDirty()
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.Items = make(map[uint]*LineItem)
	c.MarkDirty()
}

// Quantity returns how many of the product are in the cart.
func (c *Cart) Quantity(productID uint) int {
	if item, ok := c.Items[productID]; ok {
		return item.Quantity
	}
	return 0
}

// Count is the total quantity across all entries.
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) MarkDirty() {
	c.dirty = true
}

func (c *Cart) Dirty() bool {
	return c.dirty
}

// ProductIDs returns the ids in the cart in ascending order.
func (c *Cart) ProductIDs() []uint {
	ids := make([]uint, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lines prices every entry against the live catalog, ordered by product id.
// Entries whose product no longer exists are skipped. Each call re-reads the
// catalog.
func (c *Cart) Lines(ctx context.Context, catalog Catalog) ([]Line, error) {
	if c.IsEmpty() {
		return nil, nil
	}

	ids := c.ProductIDs()
	products, err := catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}

	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			continue
		}
		quantity := c.Items[id].Quantity
		price := money.Round(product.Price)
		lines = append(lines, Line{
			Product:   product,
			Quantity:  quantity,
			UnitPrice: price,
			Total:     money.LineTotal(price, quantity),
		})
	}
	return lines, nil
}

// Unresolved lists entries missing from lines, i.e. products that were
// deleted from the catalog after being added.
func (c *Cart) Unresolved(lines []Line) []uint {
	seen := make(map[uint]struct{}, len(lines))
	for _, l := range lines {
		seen[l.Product.ID] = struct{}{}
	}
	var missing []uint
	for _, id := range c.ProductIDs() {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (c *Cart) ensure() {
	if c.Items == nil {
		c.Items = make(map[uint]*LineItem)
	}
}
