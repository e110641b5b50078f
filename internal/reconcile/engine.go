// Package reconcile turns gateway notifications into order status changes.
// It is the only writer of an order's payment fields.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/events"
	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/notification"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderStore interface {
	FindByID(ctx context.Context, id string) (*order.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*order.Order, error)
	FindByPaymentReference(ctx context.Context, paymentID string) (*order.Order, error)
	ApplyPaymentUpdate(ctx context.Context, orderID string, u order.PaymentUpdate) (bool, error)
}

type TransactionStore interface {
	UpsertTransaction(ctx context.Context, tx payment.Transaction) error
}

type NotificationStore interface {
	MarkProcessed(ctx context.Context, id string) (bool, error)
	ListUnprocessed(ctx context.Context, limit int) ([]notification.Notification, error)
}

type Engine struct {
	orders        OrderStore
	transactions  TransactionStore
	notifications NotificationStore
	publisher     events.Publisher
	metrics       *metrics.Reconciliation
	now           func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *metrics.Reconciliation) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func NewEngine(orders OrderStore, transactions TransactionStore, notifications NotificationStore, opts ...Option) *Engine {
	e := &Engine{
		orders:        orders,
		transactions:  transactions,
		notifications: notifications,
		publisher:     events.Noop{},
		metrics:       &metrics.Reconciliation{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Metrics() *metrics.Reconciliation {
	return e.metrics
}

// MapStatus maps a gateway status onto the order status it leads to.
// Matching is case-insensitive and exact; anything unknown keeps the order
// awaiting payment and only mirrors the raw status.
func MapStatus(gatewayStatus string) order.Status {
	switch strings.ToLower(gatewayStatus) {
	case "paid":
		return order.StatusPaymentApproved
	case "refused", "failed", "canceled", "refunded", "chargedback":
		return order.StatusCanceled
	default:
		return order.StatusAwaitingPayment
	}
}

// Reconcile applies one stored notification. Unknown references and
// unrecognized payloads are marked processed without touching any order.
// Only storage failures are returned.
func (e *Engine) Reconcile(ctx context.Context, n *notification.Notification, ev notification.Event) error {
	timer := metrics.StartTimer()
	e.metrics.Received.Inc()

	ctx = logger.WithFields(ctx,
		zap.String("notification_id", n.ID),
		zap.String("transaction_id", ev.Reference),
		zap.String("event_type", ev.Type),
	)
	log := logger.FromCtx(ctx)

	if !ev.Actionable() {
		e.metrics.Unrecognized.Inc()
		log.Warn("notification carries no usable reference",
			zap.String("kind", string(ev.Kind)),
			zap.String("event_id", ev.ID),
		)
		return e.markProcessed(ctx, n.ID)
	}

	o, byReference, err := e.resolveOrder(ctx, ev)
	if err != nil && !apperr.IsNotFound(err) {
		e.metrics.Failures.Inc()
		return err
	}

	if ev.Reference != "" {
		tx := payment.Transaction{
			TransactionID: ev.Reference,
			Status:        ev.Status,
			PaymentData:   n.RawData,
		}
		if o != nil {
			tx.OrderID = &o.ID
		}
		if err := e.transactions.UpsertTransaction(ctx, tx); err != nil {
			e.metrics.Failures.Inc()
			return err
		}
	}

	if o == nil {
		e.metrics.Unmatched.Inc()
		log.Warn("no order matches notification",
			zap.String("order_ref", ev.OrderID),
			zap.String("order_number", ev.OrderNumber),
		)
		return e.markProcessed(ctx, n.ID)
	}

	ctx = logger.WithFields(ctx, zap.String("order_id", o.ID))
	if !byReference && supersededBy(o, ev.Reference) {
		// An older charge of this order reporting late. Its outcome must
		// not decide the order; the current charge's notifications will.
		e.metrics.Superseded.Inc()
		logger.FromCtx(ctx).Info("notification for superseded charge, only mirrored",
			zap.String("current_payment_id", *o.PaymentID),
			zap.String("gateway_status", ev.Status),
		)
		return e.markProcessed(ctx, n.ID)
	}

	if _, err := e.apply(ctx, o, ev.Status, ev.Reference); err != nil {
		e.metrics.Failures.Inc()
		return err
	}

	if err := e.markProcessed(ctx, n.ID); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("notification reconciled",
		zap.String("gateway_status", ev.Status),
		zap.Duration("duration", timer.Duration()),
	)
	return nil
}

// resolveOrder tries the gateway reference first, then the internal order
// id and number echoed back in metadata. byReference reports whether the
// order was found through its recorded payment reference.
func (e *Engine) resolveOrder(ctx context.Context, ev notification.Event) (o *order.Order, byReference bool, err error) {
	if ev.Reference != "" {
		o, err := e.orders.FindByPaymentReference(ctx, ev.Reference)
		if err == nil || !apperr.IsNotFound(err) {
			return o, err == nil, err
		}
	}

	if _, err := uuid.Parse(ev.OrderID); err == nil {
		o, err := e.orders.FindByID(ctx, ev.OrderID)
		if err == nil || !apperr.IsNotFound(err) {
			return o, false, err
		}
	}

	if ev.OrderNumber != "" {
		o, err := e.orders.FindByNumber(ctx, ev.OrderNumber)
		if err == nil || !apperr.IsNotFound(err) {
			return o, false, err
		}
	}

	return nil, false, apperr.NotFound("order", ev.Reference)
}

// supersededBy reports whether the order is already tied to a different
// gateway charge than reference.
func supersededBy(o *order.Order, reference string) bool {
	return reference != "" && o.PaymentID != nil && *o.PaymentID != "" && *o.PaymentID != reference
}

// apply writes the mapped status. Terminal orders are left alone, and the
// repository only updates rows still awaiting payment, so concurrent
// deliveries converge on the first terminal status.
func (e *Engine) apply(ctx context.Context, o *order.Order, gatewayStatus, reference string) (bool, error) {
	log := logger.FromCtx(ctx)
	target := MapStatus(gatewayStatus)

	if o.Status.Terminal() {
		log.Info("order already final, notification ignored",
			zap.String("status", string(o.Status)),
			zap.String("gateway_status", gatewayStatus),
		)
		return false, nil
	}

	u := order.PaymentUpdate{
		Status:        target,
		PaymentStatus: gatewayStatus,
	}
	// only set when no charge was recorded for the order yet
	if o.PaymentID == nil || *o.PaymentID == "" {
		u.PaymentID = reference
	}
	if target == order.StatusPaymentApproved {
		paidAt := e.now().UTC()
		u.PaymentDate = &paidAt
	}

	changed, err := e.orders.ApplyPaymentUpdate(ctx, o.ID, u)
	if err != nil {
		return false, err
	}
	if !changed {
		log.Info("order left awaiting payment concurrently, notification ignored")
		return false, nil
	}

	if target.Terminal() {
		e.metrics.Transitions.Inc()
		log.Info("order status changed",
			zap.String("from", string(o.Status)),
			zap.String("to", string(target)),
		)
		e.publish(ctx, o, u)
	}
	return true, nil
}

func (e *Engine) publish(ctx context.Context, o *order.Order, u order.PaymentUpdate) {
	eventType := events.TypeCanceled
	if u.Status == order.StatusPaymentApproved {
		eventType = events.TypePaymentApproved
	}

	paymentID := u.PaymentID
	if paymentID == "" && o.PaymentID != nil {
		paymentID = *o.PaymentID
	}

	ev := events.OrderStatusChanged{
		EventID:       uuid.New().String(),
		Type:          eventType,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        string(u.Status),
		PaymentStatus: u.PaymentStatus,
		PaymentID:     paymentID,
		OccurredAt:    e.now().UTC(),
	}
	if err := e.publisher.Publish(ctx, o.ID, ev); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish order event", zap.String("type", eventType), zap.Error(err))
	}
}

func (e *Engine) markProcessed(ctx context.Context, notificationID string) error {
	flipped, err := e.notifications.MarkProcessed(ctx, notificationID)
	if err != nil {
		e.metrics.Failures.Inc()
		return err
	}
	if !flipped {
		logger.FromCtx(ctx).Debug("notification already processed")
	}
	e.metrics.Processed.Inc()
	return nil
}

// RecordCharge mirrors a charge created at checkout onto the order and the
// transaction table. The order status never changes here: the webhook for
// the charge decides it.
func (e *Engine) RecordCharge(ctx context.Context, orderID string, result *payment.ChargeResult) error {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", orderID),
		zap.String("transaction_id", result.TransactionID),
	)

	err := e.transactions.UpsertTransaction(ctx, payment.Transaction{
		TransactionID: result.TransactionID,
		OrderID:       &orderID,
		Status:        result.Status,
		PaymentData:   result.RawResponse,
	})
	if err != nil {
		return err
	}

	changed, err := e.orders.ApplyPaymentUpdate(ctx, orderID, order.PaymentUpdate{
		Status:        order.StatusAwaitingPayment,
		PaymentStatus: result.Status,
		PaymentID:     result.TransactionID,
	})
	if err != nil {
		return err
	}
	if !changed {
		log.Warn("order no longer awaiting payment, charge only mirrored")
	}
	return nil
}

// ReplayUnprocessed reconciles stored notifications that were never marked
// processed, oldest first. It stops at the first storage failure.
func (e *Engine) ReplayUnprocessed(ctx context.Context, limit int) (int, error) {
	pending, err := e.notifications.ListUnprocessed(ctx, limit)
	if err != nil {
		return 0, err
	}

	done := 0
	for i := range pending {
		n := &pending[i]
		if err := e.Reconcile(ctx, n, notification.ParseEvent(n.RawData)); err != nil {
			return done, fmt.Errorf("replay stopped at notification %s: %w", n.ID, err)
		}
		done++
	}
	return done, nil
}
