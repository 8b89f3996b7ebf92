// Package checkout turns a session cart into a persisted order. It prices the
// cart, runs the chosen payment strategy, writes the order atomically and then
// clears the cart, records an audit event and sends the order notification.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/invoice"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Orders is the order store the service writes to.
type Orders interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id uint) (*models.Order, error)
	ListForUser(ctx context.Context, userID string, page, pageSize int) ([]models.Order, int64, error)
	LatestForUser(ctx context.Context, userID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uint, from, to models.OrderStatus) error
	ConfirmCOD(ctx context.Context, id uint) error
}

// Addresses is the address book store.
type Addresses interface {
	ListForUser(ctx context.Context, userID string) ([]models.ShippingAddress, error)
	Get(ctx context.Context, id uint) (*models.ShippingAddress, error)
	Create(ctx context.Context, address *models.ShippingAddress) error
	Delete(ctx context.Context, id uint, userID string) error
}

// AuditLog keeps the order event trail.
type AuditLog interface {
	RecordOrderEvent(ctx context.Context, event *repository.OrderEvent) error
	OrderEvents(ctx context.Context, orderID uint, limit int64) ([]*repository.OrderEvent, error)
}

// Identity is the authenticated caller. The zero value is a guest.
type Identity struct {
	UserID string
	Admin  bool
}

// Authenticated reports whether a user is logged in.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

func (i Identity) actor() string {
	if i.UserID == "" {
		return "guest"
	}
	return i.UserID
}

// Dependencies are the collaborators a Service needs. Audit may be nil.
type Dependencies struct {
	Catalog   cart.Catalog
	Orders    Orders
	Addresses Addresses
	Payments  *payment.Registry
	Notifier  notify.Notifier
	Audit     AuditLog
	Invoices  *invoice.Renderer
}

// Options tune pricing and checkout rules.
type Options struct {
	Pricing            cart.Pricing
	Currency           string
	StrictAvailability bool
	// PublicURL is the base for payment return and cancel links.
	PublicURL string
}

// Service runs checkout and order management.
type Service struct {
	catalog   cart.Catalog
	orders    Orders
	addresses Addresses
	payments  *payment.Registry
	notifier  notify.Notifier
	audit     AuditLog
	invoices  *invoice.Renderer

	pricing   cart.Pricing
	currency  string
	strict    bool
	publicURL string
	logger    *zap.Logger
}

// NewService creates a checkout service.
func NewService(deps Dependencies, opts Options, logger *zap.Logger) *Service {
	return &Service{
		catalog:   deps.Catalog,
		orders:    deps.Orders,
		addresses: deps.Addresses,
		payments:  deps.Payments,
		notifier:  deps.Notifier,
		audit:     deps.Audit,
		invoices:  deps.Invoices,
		pricing:   opts.Pricing,
		currency:  opts.Currency,
		strict:    opts.StrictAvailability,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		logger:    logger.Named("checkout"),
	}
}

// CartView is a priced cart.
type CartView struct {
	Lines  []cart.Line
	Totals cart.Totals
	Count  int
	// Missing lists products still in the cart that are gone from the catalog.
	Missing []uint
}

// Summary returns the totals in their JSON shape.
func (v *CartView) Summary() cart.Summary {
	return v.Totals.Summary(v.Count)
}

// PriceCart prices the cart against the live catalog.
func (s *Service) PriceCart(ctx context.Context, c *cart.Cart) (*CartView, error) {
	lines, err := c.Lines(ctx, s.catalog)
	if err != nil {
		return nil, err
	}
	return &CartView{
		Lines:   lines,
		Totals:  s.computeTotals(lines),
		Count:   c.Count(),
		Missing: c.Unresolved(lines),
	}, nil
}

func (s *Service) computeTotals(lines []cart.Line) cart.Totals {
	return s.pricing.Totals(lines)
}

// quote prices the cart for checkout. A cart whose products have all been
// deleted counts as empty.
func (s *Service) quote(ctx context.Context, c *cart.Cart) (*CartView, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	view, err := s.PriceCart(ctx, c)
	if err != nil {
		return nil, err
	}
	if s.strict {
		unavailable := append([]uint(nil), view.Missing...)
		for _, l := range view.Lines {
			if !l.Product.InStock() {
				unavailable = append(unavailable, l.Product.ID)
			}
		}
		if len(unavailable) > 0 {
			return nil, &UnavailableError{ProductIDs: unavailable}
		}
	}
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	return view, nil
}

// Overview is what the checkout page shows.
type Overview struct {
	*CartView
	Addresses []models.ShippingAddress
	AddressID *uint
}

// Overview prices the cart and lists the addresses the buyer can ship to.
func (s *Service) Overview(ctx context.Context, session *cart.Session, id Identity) (*Overview, error) {
	view, err := s.quote(ctx, session.Cart)
	if err != nil {
		return nil, err
	}

	ov := &Overview{CartView: view, AddressID: session.AddressID}
	if id.Authenticated() {
		ov.Addresses, err = s.addresses.ListForUser(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
	}
	return ov, nil
}

// AddressInput either selects a saved address by ID or describes a new one.
type AddressInput struct {
	ID          *uint
	FullName    string
	Email       string
	AddressLine string
	City        string
	PostalCode  string
	Country     string
	IsDefault   bool
}

func (in AddressInput) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"full_name":    in.FullName,
		"address_line": in.AddressLine,
		"city":         in.City,
		"postal_code":  in.PostalCode,
		"country":      in.Country,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: invalid email", ErrInvalidAddress)
	}
	return nil
}

// ChooseAddress stores the shipping address for the session's next order.
func (s *Service) ChooseAddress(ctx context.Context, session *cart.Session, id Identity, in AddressInput) (*models.ShippingAddress, error) {
	if in.ID != nil {
		address, err := s.addresses.Get(ctx, *in.ID)
		if err != nil {
			return nil, notFound(err)
		}
		if !s.canUseAddress(session, id, address) {
			return nil, ErrNotFound
		}
		session.SetAddress(&address.ID)
		return address, nil
	}

	address, err := s.AddAddress(ctx, id, in)
	if err != nil {
		return nil, err
	}
	session.SetAddress(&address.ID)
	return address, nil
}

func (s *Service) canUseAddress(session *cart.Session, id Identity, address *models.ShippingAddress) bool {
	if address.UserID != nil {
		return address.OwnedBy(id.UserID)
	}
	return session.AddressID != nil && *session.AddressID == address.ID
}

// Addresses lists a user's saved addresses.
func (s *Service) Addresses(ctx context.Context, id Identity) ([]models.ShippingAddress, error) {
	return s.addresses.ListForUser(ctx, id.UserID)
}

// AddAddress saves a new address, owned by the caller when authenticated.
func (s *Service) AddAddress(ctx context.Context, id Identity, in AddressInput) (*models.ShippingAddress, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	address := &models.ShippingAddress{
		FullName:    strings.TrimSpace(in.FullName),
		AddressLine: strings.TrimSpace(in.AddressLine),
		City:        strings.TrimSpace(in.City),
		PostalCode:  strings.TrimSpace(in.PostalCode),
		Country:     strings.TrimSpace(in.Country),
	}
	if in.Email != "" {
		email := strings.TrimSpace(in.Email)
		address.Email = &email
	}
	if id.Authenticated() {
		owner := id.UserID
		address.UserID = &owner
		address.IsDefault = in.IsDefault
	}

	if err := s.addresses.Create(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// DeleteAddress removes one of the caller's addresses. Orders that used it
// keep a null address reference.
func (s *Service) DeleteAddress(ctx context.Context, id Identity, addressID uint) error {
	return notFound(s.addresses.Delete(ctx, addressID, id.UserID))
}

// resolveAddress returns the session's chosen address if it still exists and
// the caller may use it. A missing address is not an error.
func (s *Service) resolveAddress(ctx context.Context, session *cart.Session, id Identity) (*uint, error) {
	if session.AddressID == nil {
		return nil, nil
	}
	address, err := s.addresses.Get(ctx, *session.AddressID)
	if errors.Is(err, repository.ErrNotFound) {
		session.SetAddress(nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.canUseAddress(session, id, address) {
		return nil, ErrNotFound
	}
	return &address.ID, nil
}

// PayRequest starts checkout for a session.
type PayRequest struct {
	Session  *cart.Session
	Identity Identity
	Method   models.PaymentMethod
}

// PayResult carries either the placed order or the URL the buyer must visit
// to finish paying.
type PayResult struct {
	Order       *models.Order
	RedirectURL string
}

// Pay starts checkout with the chosen method. Cash on delivery places the
// order right away; external methods return a redirect and remember the
// pending payment in the session.
func (s *Service) Pay(ctx context.Context, req PayRequest) (*PayResult, error) {
	strategy, err := s.payments.Select(req.Method)
	if err != nil {
		return nil, gatewayError(err)
	}

	view, err := s.quote(ctx, req.Session.Cart)
	if err != nil {
		return nil, err
	}
	addressID, err := s.resolveAddress(ctx, req.Session, req.Identity)
	if err != nil {
		return nil, err
	}

	draft := s.draft(req.Method, view.Lines, view.Totals)
	redirect, err := strategy.Begin(ctx, draft)
	if err != nil {
		s.logger.Warn("Failed to start payment", zap.String("method", string(req.Method)), zap.Error(err))
		return nil, gatewayError(err)
	}

	if redirect == nil {
		auth, err := strategy.Authorize(ctx, draft, payment.Callback{})
		if err != nil {
			return nil, gatewayError(err)
		}
		if !auth.OK() {
			return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, auth.Reason)
		}
		order, err := s.placeOrder(ctx, req.Session, req.Identity, placement{
			lines:     view.Lines,
			totals:    view.Totals,
			method:    req.Method,
			addressID: addressID,
		})
		if err != nil {
			return nil, err
		}
		return &PayResult{Order: order}, nil
	}

	req.Session.SetPending(&cart.PendingPayment{
		Method:    req.Method,
		Reference: redirect.Reference,
		AddressID: addressID,
		StartedAt: time.Now(),
		Lines:     cart.Snapshot(view.Lines),
		Totals:    view.Totals,
	})
	s.logger.Info("Payment started",
		zap.String("method", string(req.Method)),
		zap.String("reference", redirect.Reference),
		zap.String("total", view.Totals.Total.StringFixed(2)))
	return &PayResult{RedirectURL: redirect.URL}, nil
}

func (s *Service) draft(method models.PaymentMethod, lines []cart.Line, totals cart.Totals) payment.Draft {
	success := s.publicURL + "/checkout/success"
	if method == models.PaymentWallet {
		success = s.publicURL + "/checkout/wallet/return"
	}
	return payment.Draft{
		Lines:      lines,
		Totals:     totals,
		Currency:   s.currency,
		SuccessURL: success,
		CancelURL:  s.publicURL + "/checkout/cancel",
	}
}

// ConfirmRequest carries the provider callback for a pending payment.
type ConfirmRequest struct {
	Session   *cart.Session
	Identity  Identity
	Method    models.PaymentMethod
	Reference string
	PayerID   string
}

// Confirm authorizes the session's pending payment and places the order as
// Paid. The order carries the lines and totals the provider was asked to
// charge, whatever happened to the cart or catalog since. When
// authorization fails the cart is left as it was.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*models.Order, error) {
	pending := req.Session.Pending
	if pending == nil || pending.Method != req.Method {
		return nil, ErrNoPendingPayment
	}
	if req.Reference != "" && req.Reference != pending.Reference {
		return nil, ErrNoPendingPayment
	}

	strategy, err := s.payments.Select(pending.Method)
	if err != nil {
		return nil, gatewayError(err)
	}
	if len(pending.Lines) == 0 {
		return nil, ErrNoPendingPayment
	}
	lines := pending.PricedLines()

	auth, err := strategy.Authorize(ctx, s.draft(pending.Method, lines, pending.Totals), payment.Callback{
		Reference: pending.Reference,
		PayerID:   req.PayerID,
	})
	if err != nil {
		s.logger.Warn("Payment authorization failed",
			zap.String("reference", pending.Reference), zap.Error(err))
		return nil, gatewayError(err)
	}
	if !auth.OK() {
		req.Session.SetPending(nil)
		s.logger.Info("Payment declined",
			zap.String("reference", pending.Reference), zap.String("reason", auth.Reason))
		return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, auth.Reason)
	}

	// Products or an address deleted since the payment started are left
	// unreferenced; the order keeps the snapshot.
	gone, err := s.deletedProducts(ctx, lines)
	if err != nil {
		s.logger.Error("Payment captured but catalog lookup failed",
			zap.String("reference", auth.Reference), zap.Error(err))
		return nil, err
	}

	addressID := pending.AddressID
	if addressID != nil {
		if _, err := s.addresses.Get(ctx, *addressID); errors.Is(err, repository.ErrNotFound) {
			addressID = nil
		}
	}

	order, err := s.placeOrder(ctx, req.Session, req.Identity, placement{
		lines:     lines,
		totals:    pending.Totals,
		gone:      gone,
		method:    pending.Method,
		addressID: addressID,
		reference: auth.Reference,
	})
	if err != nil {
		s.logger.Error("Payment captured but order was not created",
			zap.String("reference", auth.Reference), zap.Error(err))
		return nil, err
	}
	req.Session.RememberPayment(pending.Reference, order.ID)
	req.Session.SetPending(nil)
	return order, nil
}

// Placed returns the order an earlier confirmation of reference placed in
// this session, so a repeated provider return shows it again instead of
// failing.
func (s *Service) Placed(ctx context.Context, session *cart.Session, reference string) (*models.Order, error) {
	id, ok := session.OrderForPayment(reference)
	if !ok {
		return nil, ErrNotFound
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return order, nil
}

// Cancel forgets the session's pending payment.
func (s *Service) Cancel(session *cart.Session) {
	if session.Pending != nil {
		session.SetPending(nil)
	}
}

type placement struct {
	lines     []cart.Line
	totals    cart.Totals
	gone      map[uint]bool
	method    models.PaymentMethod
	addressID *uint
	reference string
}

func (s *Service) buildOrder(id Identity, p placement) *models.Order {
	order := &models.Order{
		ShippingAddressID: p.addressID,
		Subtotal:          p.totals.Subtotal,
		ShippingFee:       p.totals.Shipping,
		TaxAmount:         p.totals.Tax,
		TotalPrice:        p.totals.Total,
		Status:            models.StatusPaid,
		PaymentMethod:     p.method,
	}
	if id.Authenticated() {
		owner := id.UserID
		order.UserID = &owner
	}

	switch p.method {
	case models.PaymentCOD:
		order.Status = models.StatusPending
	case models.PaymentCard:
		ref := p.reference
		order.CardPaymentRef = &ref
	case models.PaymentWallet:
		ref := p.reference
		order.WalletTransactionID = &ref
	}

	order.Items = make([]models.OrderItem, 0, len(p.lines))
	for _, l := range p.lines {
		item := models.OrderItem{
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		}
		if !p.gone[l.Product.ID] {
			productID := l.Product.ID
			item.ProductID = &productID
		}
		order.Items = append(order.Items, item)
	}
	return order
}

func (s *Service) deletedProducts(ctx context.Context, lines []cart.Line) (map[uint]bool, error) {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.Product.ID)
	}
	live, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	gone := make(map[uint]bool)
	for _, id := range ids {
		if _, ok := live[id]; !ok {
			gone[id] = true
		}
	}
	return gone, nil
}

func (s *Service) placeOrder(ctx context.Context, session *cart.Session, id Identity, p placement) (*models.Order, error) {
	order := s.buildOrder(id, p)
	err := s.orders.Create(ctx, order)
	if errors.Is(err, repository.ErrAlreadyPlaced) {
		// Another request already placed this payment's order.
		s.logger.Info("Order already placed for payment", zap.Uint("order_id", order.ID))
		session.Cart.Clear()
		session.RememberOrder(order.ID)
		return order, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	session.Cart.Clear()
	session.RememberOrder(order.ID)

	s.logger.Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.String("method", string(order.PaymentMethod)),
		zap.String("status", order.Status.String()),
		zap.String("total", order.TotalPrice.StringFixed(2)))

	if placed, err := s.orders.Get(ctx, order.ID); err == nil {
		order = placed
	} else {
		s.logger.Warn("Failed to reload placed order", zap.Uint("order_id", order.ID), zap.Error(err))
	}

	s.record(ctx, order, "created", id.actor(), bson.M{
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
		"total":          order.TotalPrice.StringFixed(2),
	})
	s.notifier.Send(order, notify.OrderPlaced)
	return order, nil
}

// record appends to the audit trail. Failures are logged only.
func (s *Service) record(ctx context.Context, order *models.Order, action, actor string, data bson.M) {
	if s.audit == nil {
		return
	}
	err := s.audit.RecordOrderEvent(ctx, &repository.OrderEvent{
		Action:  action,
		OrderID: order.ID,
		Actor:   actor,
		Data:    data,
	})
	if err != nil {
		s.logger.Warn("Failed to record order event",
			zap.Uint("order_id", order.ID), zap.String("action", action), zap.Error(err))
	}
}

// Viewer is whoever asks to see an order: an authenticated user, an admin,
// or a guest session that placed it.
type Viewer struct {
	Identity Identity
	Session  *cart.Session
}

func (v Viewer) canSee(order *models.Order) bool {
	if v.Identity.Admin || order.OwnedBy(v.Identity.UserID) {
		return true
	}
	return order.UserID == nil && v.Session != nil && v.Session.OwnsOrder(order.ID)
}

// Order returns the order if the viewer may see it. Orders owned by someone
// else are reported as not found.
func (s *Service) Order(ctx context.Context, orderID uint, v Viewer) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err)
	}
	if !v.canSee(order) {
		return nil, ErrNotFound
	}
	return order, nil
}

// Latest returns the viewer's most recent order.
func (s *Service) Latest(ctx context.Context, v Viewer) (*models.Order, error) {
	if v.Identity.Authenticated() {
		order, err := s.orders.LatestForUser(ctx, v.Identity.UserID)
		return order, notFound(err)
	}
	if v.Session == nil || len(v.Session.OrderIDs) == 0 {
		return nil, ErrNotFound
	}
	return s.Order(ctx, v.Session.OrderIDs[len(v.Session.OrderIDs)-1], v)
}

// Orders pages through a user's orders, newest first.
func (s *Service) Orders(ctx context.Context, id Identity, page, pageSize int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.orders.ListForUser(ctx, id.UserID, page, pageSize)
}

// UpdateStatus applies an administrative status change and sends the
// matching notification. Totals are never touched.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, next models.OrderStatus, actor Identity) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err)
	}
	if !order.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, next)
	}

	prev := order.Status
	if err := s.orders.UpdateStatus(ctx, order.ID, prev, next); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, err
	}
	order.Status = next

	s.logger.Info("Order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", prev.String()),
		zap.String("to", next.String()))
	s.record(ctx, order, "status_changed", actor.actor(), bson.M{"from": prev, "to": next})

	if kind, ok := notify.KindForStatus(next); ok {
		s.notifier.Send(order, kind)
	}
	return order, nil
}

// ConfirmCOD records that a cash-on-delivery order was paid at the door. It
// does not change the order status.
func (s *Service) ConfirmCOD(ctx context.Context, orderID uint, actor Identity) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err)
	}
	if order.PaymentMethod != models.PaymentCOD || order.Status == models.StatusCanceled {
		return nil, fmt.Errorf("%w: order %d cannot be confirmed as cash on delivery", ErrInvalidTransition, order.ID)
	}
	if order.CODConfirmed {
		return order, nil
	}

	if err := s.orders.ConfirmCOD(ctx, order.ID); err != nil {
		return nil, notFound(err)
	}
	order.CODConfirmed = true

	s.record(ctx, order, "cod_confirmed", actor.actor(), nil)
	return order, nil
}

// History returns the newest audit events for an order.
func (s *Service) History(ctx context.Context, orderID uint, limit int64) ([]*repository.OrderEvent, error) {
	if s.audit == nil {
		return nil, nil
	}
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, notFound(err)
	}
	return s.audit.OrderEvents(ctx, orderID, limit)
}

// Invoice renders the PDF invoice for an order the viewer may see.
func (s *Service) Invoice(ctx context.Context, orderID uint, v Viewer) (*models.Order, []byte, error) {
	order, err := s.Order(ctx, orderID, v)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := s.invoices.Render(order)
	if err != nil {
		return nil, nil, err
	}
	return order, pdf, nil
}
