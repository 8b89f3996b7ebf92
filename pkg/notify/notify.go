// Package notify sends order notifications. Delivery runs on a protoactor
// actor so callers never wait on it and never see its failures.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"go.uber.org/zap"
)

// Kind identifies which order event a notification is about.
type Kind string

const (
	OrderPlaced    Kind = "order_placed"
	OrderShipped   Kind = "order_shipped"
	OrderCompleted Kind = "order_completed"
	OrderCanceled  Kind = "order_canceled"
)

// KindForStatus maps an administrative status change to its notification.
func KindForStatus(s models.OrderStatus) (Kind, bool) {
	switch s {
	case models.StatusShipped:
		return OrderShipped, true
	case models.StatusCompleted:
		return OrderCompleted, true
	case models.StatusCanceled:
		return OrderCanceled, true
	}
	return "", false
}

// Message is a rendered notification ready to deliver.
type Message struct {
	OrderID uint
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Directory looks up the email address of a registered user.
type Directory interface {
	Email(ctx context.Context, userID string) (string, error)
}

// Notifier is fire-and-forget.
type Notifier interface {
	Send(order *models.Order, kind Kind)
}

type deliver struct {
	order models.Order
	kind  Kind
}

type notificationActor struct {
	sender    Sender
	directory Directory
	logger    *zap.Logger
	timeout   time.Duration
}

func (a *notificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *deliver:
		a.deliver(msg)

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped")
	}
}

func (a *notificationActor) deliver(msg *deliver) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	to := a.recipient(ctx, &msg.order)
	if to == "" {
		a.logger.Debug("No recipient for order notification",
			zap.Uint("order_id", msg.order.ID),
			zap.String("kind", string(msg.kind)))
		return
	}

	m := Render(&msg.order, msg.kind)
	m.To = to
	if err := a.sender.Send(ctx, m); err != nil {
		a.logger.Error("Failed to send order notification",
			zap.Uint("order_id", msg.order.ID),
			zap.String("kind", string(msg.kind)),
			zap.Error(err))
		return
	}

	a.logger.Info("Order notification sent",
		zap.Uint("order_id", msg.order.ID),
		zap.String("kind", string(msg.kind)))
}

// recipient prefers the account email and falls back to the contact email on
// the shipping address.
func (a *notificationActor) recipient(ctx context.Context, order *models.Order) string {
	if order.UserID != nil && a.directory != nil {
		email, err := a.directory.Email(ctx, *order.UserID)
		if err == nil && email != "" {
			return email
		}
		if err != nil {
			a.logger.Warn("Failed to look up user email", zap.String("user_id", *order.UserID), zap.Error(err))
		}
	}
	if order.ShippingAddress != nil && order.ShippingAddress.Email != nil {
		return *order.ShippingAddress.Email
	}
	return ""
}

// ActorNotifier hands notifications to a notification actor.
type ActorNotifier struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

// NewActorNotifier starts the notification actor.
func NewActorNotifier(sender Sender, directory Directory, logger *zap.Logger) (*ActorNotifier, error) {
	logger = logger.Named("notification-actor")
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &notificationActor{
			sender:    sender,
			directory: directory,
			logger:    logger,
			timeout:   30 * time.Second,
		}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}

	return &ActorNotifier{system: system, pid: pid, logger: logger}, nil
}

// Send queues the notification and returns immediately. The order is copied
// so later changes by the caller do not leak into the message.
func (n *ActorNotifier) Send(order *models.Order, kind Kind) {
	n.system.Root.Send(n.pid, &deliver{order: *order, kind: kind})
}

// Close drains queued notifications and stops the actor.
func (n *ActorNotifier) Close() error {
	return n.system.Root.PoisonFuture(n.pid).Wait()
}

var subjects = map[Kind]string{
	OrderPlaced:    "Your Order has been Placed!",
	OrderShipped:   "Your Order has been Shipped!",
	OrderCompleted: "Your Order has been Delivered!",
	OrderCanceled:  "Your Order has been Canceled",
}

// Render builds the subject and plain-text body for an order notification.
func Render(order *models.Order, kind Kind) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d\n", order.ID)
	fmt.Fprintf(&b, "Status: %s\n", order.Status)
	fmt.Fprintf(&b, "Payment: %s\n\n", order.PaymentMethod)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "%-30s %3d x %10s = %10s\n",
			item.ProductName, item.Quantity, money.Format(item.UnitPrice), money.Format(item.LineTotal()))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", money.Format(order.Subtotal))
	fmt.Fprintf(&b, "Shipping: %s\n", money.Format(order.ShippingFee))
	fmt.Fprintf(&b, "Tax:      %s\n", money.Format(order.TaxAmount))
	fmt.Fprintf(&b, "Total:    %s\n", money.Format(order.TotalPrice))

	return Message{
		OrderID: order.ID,
		Kind:    kind,
		Subject: subjects[kind],
		Body:    b.String(),
	}
}
