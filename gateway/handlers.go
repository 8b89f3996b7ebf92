package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/checkout"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/gin-gonic/gin"
)

type lineResponse struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
	InStock   bool   `json:"in_stock"`
}

type cartResponse struct {
	Items   []lineResponse `json:"items"`
	Summary cart.Summary   `json:"summary"`
	Missing []uint         `json:"missing,omitempty"`
}

func newCartResponse(view *checkout.CartView) cartResponse {
	items := make([]lineResponse, 0, len(view.Lines))
	for _, l := range view.Lines {
		items = append(items, lineResponse{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: money.Format(l.UnitPrice),
			Total:     money.Format(l.Total),
			InStock:   l.Product.InStock(),
		})
	}
	return cartResponse{Items: items, Summary: view.Summary(), Missing: view.Missing}
}

type orderItemResponse struct {
	ProductID   *uint  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

type orderResponse struct {
	ID              uint                    `json:"id"`
	Status          models.OrderStatus      `json:"status"`
	PaymentMethod   models.PaymentMethod    `json:"payment_method"`
	CODConfirmed    bool                    `json:"cod_confirmed"`
	Subtotal        string                  `json:"subtotal"`
	ShippingFee     string                  `json:"shipping_fee"`
	TaxAmount       string                  `json:"tax_amount"`
	TotalPrice      string                  `json:"total_price"`
	ShippingAddress *models.ShippingAddress `json:"shipping_address"`
	Items           []orderItemResponse     `json:"items"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func newOrderResponse(o *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   money.Format(item.UnitPrice),
			Total:       money.Format(item.LineTotal()),
		})
	}
	return orderResponse{
		ID:              o.ID,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		CODConfirmed:    o.CODConfirmed,
		Subtotal:        money.Format(o.Subtotal),
		ShippingFee:     money.Format(o.ShippingFee),
		TaxAmount:       money.Format(o.TaxAmount),
		TotalPrice:      money.Format(o.TotalPrice),
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// reply saves the session before the body is written so the next request
// from the browser sees the change.
func (g *Gateway) reply(c *gin.Context, status int, body interface{}) {
	g.saveSession(c)
	c.JSON(status, body)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, fmt.Errorf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return uint(id), true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func (g *Gateway) listProducts(c *gin.Context) {
	page, pageSize := pagination(c)
	products, total, err := g.catalog.List(c.Request.Context(), page, pageSize)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": total, "page": page})
}

func (g *Gateway) getProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	product, err := g.catalog.Get(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type cartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
	Override  bool `json:"override"`
}

func (g *Gateway) renderCart(c *gin.Context, status int) {
	view, err := g.checkout.PriceCart(c.Request.Context(), currentSession(c).Cart)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.reply(c, status, newCartResponse(view))
}

func (g *Gateway) viewCart(c *gin.Context) {
	g.renderCart(c, http.StatusOK)
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := g.catalog.Get(c.Request.Context(), req.ProductID)
	if err != nil {
		g.fail(c, err)
		return
	}

	currentSession(c).Cart.Add(*product, req.Quantity, req.Override)
	g.renderCart(c, http.StatusOK)
}

// updateCart sets the quantity of a line. Zero or less removes it.
func (g *Gateway) updateCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session := currentSession(c)
	if req.Quantity <= 0 {
		session.Cart.Remove(req.ProductID)
		g.renderCart(c, http.StatusOK)
		return
	}

	product, err := g.catalog.Get(c.Request.Context(), req.ProductID)
	if err != nil {
		g.fail(c, err)
		return
	}
	session.Cart.Update(*product, req.Quantity)
	g.renderCart(c, http.StatusOK)
}

func (g *Gateway) removeFromCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	currentSession(c).Cart.Remove(req.ProductID)
	g.renderCart(c, http.StatusOK)
}

func (g *Gateway) clearCart(c *gin.Context) {
	currentSession(c).Cart.Clear()
	g.renderCart(c, http.StatusOK)
}

func (g *Gateway) checkoutOverview(c *gin.Context) {
	ov, err := g.checkout.Overview(c.Request.Context(), currentSession(c), identity(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	g.reply(c, http.StatusOK, gin.H{
		"cart":       newCartResponse(ov.CartView),
		"addresses":  ov.Addresses,
		"address_id": ov.AddressID,
	})
}

type addressRequest struct {
	ID          *uint  `json:"id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email" binding:"omitempty,email"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	IsDefault   bool   `json:"is_default"`
}

func (r addressRequest) input() checkout.AddressInput {
	return checkout.AddressInput{
		ID:          r.ID,
		FullName:    r.FullName,
		Email:       r.Email,
		AddressLine: r.AddressLine,
		City:        r.City,
		PostalCode:  r.PostalCode,
		Country:     r.Country,
		IsDefault:   r.IsDefault,
	}
}

func (g *Gateway) chooseAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	address, err := g.checkout.ChooseAddress(c.Request.Context(), currentSession(c), identity(c), req.input())
	if err != nil {
		g.fail(c, err)
		return
	}
	g.reply(c, http.StatusOK, address)
}

type payRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

func (g *Gateway) pay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	method, ok := models.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		g.fail(c, fmt.Errorf("%w: %q", checkout.ErrInvalidMethod, req.PaymentMethod))
		return
	}

	res, err := g.checkout.Pay(c.Request.Context(), checkout.PayRequest{
		Session:  currentSession(c),
		Identity: identity(c),
		Method:   method,
	})
	if err != nil {
		g.fail(c, err)
		return
	}

	if res.Order != nil {
		g.reply(c, http.StatusCreated, gin.H{"order": newOrderResponse(res.Order)})
		return
	}
	g.reply(c, http.StatusOK, gin.H{"redirect_url": res.RedirectURL})
}

// checkoutSuccess confirms a card payment when the provider sends the buyer
// back with a session id, otherwise it shows the latest order.
func (g *Gateway) checkoutSuccess(c *gin.Context) {
	ctx := c.Request.Context()

	if ref := c.Query("session_id"); ref != "" {
		if g.replyPlaced(c, ref) {
			return
		}
		order, err := g.checkout.Confirm(ctx, checkout.ConfirmRequest{
			Session:   currentSession(c),
			Identity:  identity(c),
			Method:    models.PaymentCard,
			Reference: ref,
		})
		if err != nil {
			g.fail(c, err)
			return
		}
		g.reply(c, http.StatusCreated, gin.H{"order": newOrderResponse(order)})
		return
	}

	order, err := g.checkout.Latest(ctx, viewer(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	g.reply(c, http.StatusOK, gin.H{"order": newOrderResponse(order)})
}

func (g *Gateway) walletReturn(c *gin.Context) {
	ref := c.Query("paymentId")
	payer := c.Query("PayerID")
	if ref == "" {
		badRequest(c, errors.New("paymentId is required"))
		return
	}

	if g.replyPlaced(c, ref) {
		return
	}
	order, err := g.checkout.Confirm(c.Request.Context(), checkout.ConfirmRequest{
		Session:   currentSession(c),
		Identity:  identity(c),
		Method:    models.PaymentWallet,
		Reference: ref,
		PayerID:   payer,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	g.reply(c, http.StatusCreated, gin.H{"order": newOrderResponse(order)})
}

// replyPlaced answers a repeated provider return with the order the first
// one placed. It reports whether a response was written.
func (g *Gateway) replyPlaced(c *gin.Context, reference string) bool {
	order, err := g.checkout.Placed(c.Request.Context(), currentSession(c), reference)
	if err != nil {
		return false
	}
	g.reply(c, http.StatusOK, gin.H{"order": newOrderResponse(order)})
	return true
}

func (g *Gateway) cancelPayment(c *gin.Context) {
	g.checkout.Cancel(currentSession(c))
	g.reply(c, http.StatusOK, gin.H{"status": "canceled"})
}

func (g *Gateway) listOrders(c *gin.Context) {
	page, pageSize := pagination(c)
	orders, total, err := g.checkout.Orders(c.Request.Context(), identity(c), page, pageSize)
	if err != nil {
		g.fail(c, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "total": total, "page": page})
}

func (g *Gateway) getOrder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := g.checkout.Order(c.Request.Context(), id, viewer(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (g *Gateway) getInvoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, pdf, err := g.checkout.Invoice(c.Request.Context(), id, viewer(c))
	if err != nil {
		g.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice_%d.pdf"`, order.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (g *Gateway) listAddresses(c *gin.Context) {
	addresses, err := g.checkout.Addresses(c.Request.Context(), identity(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

func (g *Gateway) createAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ID = nil

	address, err := g.checkout.AddAddress(c.Request.Context(), identity(c), req.input())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (g *Gateway) deleteAddress(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := g.checkout.DeleteAddress(c.Request.Context(), identity(c), id); err != nil {
		g.fail(c, err)
		return
	}
	session := currentSession(c)
	if session.AddressID != nil && *session.AddressID == id {
		session.SetAddress(nil)
	}
	c.Status(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		badRequest(c, fmt.Errorf("unknown status %q", req.Status))
		return
	}

	order, err := g.checkout.UpdateStatus(c.Request.Context(), id, status, identity(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (g *Gateway) confirmCOD(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	order, err := g.checkout.ConfirmCOD(c.Request.Context(), id, identity(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (g *Gateway) orderEvents(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 1 {
		limit = 50
	}
	events, err := g.checkout.History(c.Request.Context(), id, limit)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
