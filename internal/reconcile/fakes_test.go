package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/notification"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
)

// fakeOrders mimics the orders table, including the awaiting_payment guard
// of ApplyPaymentUpdate.
type fakeOrders struct {
	mu       sync.Mutex
	orders   map[string]order.Order
	applyErr error
	applied  int
}

func newFakeOrders(seed ...order.Order) *fakeOrders {
	f := &fakeOrders{orders: map[string]order.Order{}}
	for _, o := range seed {
		f.orders[o.ID] = o
	}
	return f
}

func orderNotFound(ref string) error {
	return fmt.Errorf("%w: %w", order.ErrOrderNotFound, apperr.NotFound("order", ref))
}

func (f *fakeOrders) get(id string) order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeOrders) CreateOrder(ctx context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrders) FindByID(ctx context.Context, id string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, orderNotFound(id)
	}
	return &o, nil
}

func (f *fakeOrders) FindByNumber(ctx context.Context, number string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OrderNumber == number {
			return &o, nil
		}
	}
	return nil, orderNotFound(number)
}

func (f *fakeOrders) FindByPaymentReference(ctx context.Context, ref string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.PaymentID != nil && *o.PaymentID == ref {
			return &o, nil
		}
	}
	return nil, orderNotFound(ref)
}

func (f *fakeOrders) ApplyPaymentUpdate(ctx context.Context, id string, u order.PaymentUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return false, f.applyErr
	}
	o, ok := f.orders[id]
	if !ok || o.Status != order.StatusAwaitingPayment {
		return false, nil
	}

	o.Status = u.Status
	ps := u.PaymentStatus
	o.PaymentStatus = &ps
	if u.PaymentID != "" {
		pid := u.PaymentID
		o.PaymentID = &pid
	}
	if u.PaymentDate != nil {
		pd := *u.PaymentDate
		o.PaymentDate = &pd
	}
	f.orders[id] = o
	f.applied++
	return true, nil
}

func (f *fakeOrders) SetPaymentMethod(ctx context.Context, id, method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return orderNotFound(id)
	}
	o.PaymentMethod = &method
	f.orders[id] = o
	return nil
}

// fakePayments is the transaction mirror plus charge attempts.
type fakePayments struct {
	mu        sync.Mutex
	txs       map[string]payment.Transaction
	attempts  []payment.ChargeAttempt
	upsertErr error
}

func newFakePayments() *fakePayments {
	return &fakePayments{txs: map[string]payment.Transaction{}}
}

func (f *fakePayments) UpsertTransaction(ctx context.Context, tx payment.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if prev, ok := f.txs[tx.TransactionID]; ok {
		if prev.OrderID != nil {
			tx.OrderID = prev.OrderID
		}
		if payment.IsFinalStatus(prev.Status) && !payment.IsFinalStatus(tx.Status) {
			tx.Status, tx.PaymentData = prev.Status, prev.PaymentData
		}
	}
	f.txs[tx.TransactionID] = tx
	return nil
}

func (f *fakePayments) GetTransaction(ctx context.Context, id string) (*payment.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, apperr.NotFound("payment transaction", id)
	}
	return &tx, nil
}

func (f *fakePayments) CreateAttempt(ctx context.Context, a *payment.ChargeAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.CreatedAt = time.Now()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakePayments) FinishAttempt(ctx context.Context, id string, state payment.AttemptState, txID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.attempts {
		if f.attempts[i].ID == id && f.attempts[i].State == payment.AttemptPending {
			f.attempts[i].State = state
			if txID != "" {
				f.attempts[i].TransactionID = &txID
			}
			return nil
		}
	}
	return apperr.NotFound("pending charge attempt", id)
}

func (f *fakePayments) LatestAttempt(ctx context.Context, orderID string) (*payment.ChargeAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.attempts) - 1; i >= 0; i-- {
		if f.attempts[i].OrderID == orderID {
			a := f.attempts[i]
			return &a, nil
		}
	}
	return nil, nil
}

// fakeNotifications is the append-only notification log.
type fakeNotifications struct {
	mu      sync.Mutex
	rows    []notification.Notification
	markErr error
}

func (f *fakeNotifications) Save(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.CreatedAt = time.Now()
	f.rows = append(f.rows, *n)
	return nil
}

func (f *fakeNotifications) MarkProcessed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			if f.rows[i].Processed {
				return false, nil
			}
			now := time.Now()
			f.rows[i].Processed = true
			f.rows[i].ProcessedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifications) ListUnprocessed(ctx context.Context, limit int) ([]notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification.Notification
	for _, n := range f.rows {
		if !n.Processed && len(out) < limit {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeNotifications) processed(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id {
			return n.Processed
		}
	}
	return false
}

// add stores a notification the way the webhook handler does.
func (f *fakeNotifications) add(id, raw string) (*notification.Notification, notification.Event) {
	ev := notification.ParseEvent([]byte(raw))
	n := &notification.Notification{
		ID:            id,
		TransactionID: ev.Reference,
		EventType:     ev.Type,
		CurrentStatus: ev.Status,
		RawData:       []byte(raw),
	}
	_ = f.Save(context.Background(), n)
	return n, ev
}

type fakePublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeCarts struct {
	carts   map[string]*cart.Cart
	cleared []string
}

func (f *fakeCarts) GetCart(ctx context.Context, identity cart.Identity) (*cart.Cart, error) {
	if c, ok := f.carts[identity.String()]; ok {
		cp := *c
		cp.Items = append([]cart.CartItem(nil), c.Items...)
		return &cp, nil
	}
	return &cart.Cart{}, nil
}

func (f *fakeCarts) ClearCart(ctx context.Context, cartID string) error {
	f.cleared = append(f.cleared, cartID)
	for _, c := range f.carts {
		if c.ID == cartID {
			c.Items = nil
		}
	}
	return nil
}

type fakeCatalog struct {
	products map[string]catalog.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	return f.GetProductFresh(ctx, id)
}

func (f *fakeCatalog) GetProductFresh(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	return &p, nil
}

type fakeGateway struct {
	result *payment.ChargeResult
	err    error
	calls  []payment.ChargeRequest
}

func (g *fakeGateway) CreateCharge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}
