// Package invoice renders order invoices as PDF documents.
package invoice

import (
	"bytes"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/go-pdf/fpdf"
)

// Renderer draws invoices for one shop.
type Renderer struct {
	shopName string
	currency string
}

// NewRenderer creates a renderer that prints shopName in the header and
// labels the total with currency.
func NewRenderer(shopName, currency string) *Renderer {
	return &Renderer{shopName: shopName, currency: currency}
}

// Render returns the invoice for order. Item rows use the prices captured
// when the order was placed.
func (r *Renderer) Render(order *models.Order) ([]byte, error) {
	pdf := r.document(order)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice for order %d: %w", order.ID, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) document(order *models.Order) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice #%d", order.ID), true)
	pdf.AddPage()

	// The core fonts are cp1252; names and addresses arrive as UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.shopName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Invoice #%d", order.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+order.CreatedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s  Payment: %s", order.Status, order.PaymentMethod), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if a := order.ShippingAddress; a != nil {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, "Ship to", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, tr(a.FullName), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(a.AddressLine), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s %s, %s", a.PostalCode, a.City, a.Country)), "", 1, "L", false, 0, "")
		pdf.Ln(4)
	}

	widths := []float64{90, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Product", "Qty", "Unit price", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range order.Items {
		pdf.CellFormat(widths[0], 7, tr(item.ProductName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money.Format(item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money.Format(item.LineTotal()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	label := widths[0] + widths[1] + widths[2]
	totals := []struct {
		name  string
		value string
	}{
		{"Subtotal", money.Format(order.Subtotal)},
		{"Shipping", money.Format(order.ShippingFee)},
		{"Tax", money.Format(order.TaxAmount)},
		{"Total (" + r.currency + ")", money.Format(order.TotalPrice)},
	}
	for i, t := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 11)
		}
		pdf.CellFormat(label, 7, t.name, "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, t.value, "", 1, "R", false, 0, "")
	}
	return pdf
}
