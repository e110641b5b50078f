package order

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/logger"
	"storefront-be/internal/money"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxOrderNumberAttempts = 3

// CartStore is the slice of the cart service checkout depends on.
type CartStore interface {
	GetCart(ctx context.Context, identity cart.Identity) (*cart.Cart, error)
	ClearCart(ctx context.Context, cartID string) error
}

type Service interface {
	Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

type service struct {
	repo      Repository
	carts     CartStore
	catalog   catalog.Lookup
	newNumber func() string
	now       func() time.Time
}

type Option func(*service)

func WithOrderNumberGenerator(fn func() string) Option {
	return func(s *service) { s.newNumber = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(repo Repository, carts CartStore, lookup catalog.Lookup, opts ...Option) Service {
	s := &service{
		repo:      repo,
		carts:     carts,
		catalog:   lookup,
		newNumber: utils.GenerateOrderNumber,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout snapshots the cart into a new order awaiting payment, then
// empties the cart. A failed insert leaves the cart untouched.
func (s *service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
		zap.String("cart", in.Identity.String()),
	)

	// 1. Validate input before touching storage
	if err := in.Identity.Validate(); err != nil {
		return nil, apperr.NewValidationError("invalid cart identity", "cart_identity")
	}
	if err := validateCheckout(in); err != nil {
		log.Warn("checkout validation failed", zap.Error(err))
		return nil, err
	}

	// 2. Load cart
	c, err := s.carts.GetCart(ctx, in.Identity)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, apperr.NewValidationError("cart is empty", "cart")
	}

	// 3. Price snapshot from the catalog, bypassing the cache
	now := s.now().UTC()
	o := &Order{
		ID:           uuid.New().String(),
		UserID:       in.Identity.UserID,
		Status:       StatusAwaitingPayment,
		Customer:     normalizeCustomer(in.Customer),
		Shipping:     in.Shipping,
		ShippingCost: in.ShippingCost.Round(2),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Identity.SessionID != "" {
		sid := in.Identity.SessionID
		o.SessionID = &sid
	}
	if in.PaymentMethod != "" {
		pm := in.PaymentMethod
		o.PaymentMethod = &pm
	}

	subtotal := decimal.Zero
	for _, ci := range c.Items {
		product, err := s.catalog.GetProductFresh(ctx, ci.ProductID)
		if err != nil {
			log.Warn("failed to price cart item", zap.String("product_id", ci.ProductID), zap.Error(err))
			return nil, err
		}

		unit := money.FromFloat(product.Price).Round(2)
		line := money.LineTotal(unit, ci.Quantity)
		subtotal = subtotal.Add(line)

		o.Items = append(o.Items, OrderItem{
			ID:                uuid.New().String(),
			OrderID:           o.ID,
			ProductID:         ci.ProductID,
			VariantID:         ci.VariantID,
			NameSnapshot:      product.Name,
			UnitPriceSnapshot: unit,
			Quantity:          ci.Quantity,
			Total:             line,
		})
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.ShippingCost)

	// 4. Persist, regenerating the order number on collision
	if err := s.insertWithUniqueNumber(ctx, o); err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	log = log.With(zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber))

	// 5. Clear cart. The order is authoritative, a stale cart is cosmetic.
	if err := s.carts.ClearCart(ctx, c.ID); err != nil {
		log.Warn("failed to clear cart after checkout", zap.String("cart_id", c.ID), zap.Error(err))
	}

	log.Info("checkout completed",
		zap.String("subtotal", o.Subtotal.StringFixed(2)),
		zap.String("shipping_cost", o.ShippingCost.StringFixed(2)),
		zap.String("total", o.Total.StringFixed(2)),
	)

	return &CheckoutResult{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Total:       o.Total,
		Status:      o.Status,
	}, nil
}

func (s *service) insertWithUniqueNumber(ctx context.Context, o *Order) error {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		o.OrderNumber = s.newNumber()
		err := s.repo.CreateOrder(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			return err
		}
	}
	return apperr.Storage("generate order number", ErrOrderNumberExhausted)
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, apperr.NewValidationError("order id is required", "order_id")
	}
	// ids are uuid columns; anything else cannot exist
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, notFound(orderID)
	}
	return s.repo.FindByID(ctx, orderID)
}

func validateCheckout(in CheckoutInput) error {
	var missing []string
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}

	require("customer.name", in.Customer.Name)
	require("customer.email", in.Customer.Email)
	require("customer.document", in.Customer.Document)
	require("customer.phone", in.Customer.Phone)
	require("shipping.street", in.Shipping.Street)
	require("shipping.number", in.Shipping.Number)
	require("shipping.neighborhood", in.Shipping.Neighborhood)
	require("shipping.city", in.Shipping.City)
	require("shipping.state", in.Shipping.State)
	require("shipping.zip_code", in.Shipping.ZipCode)

	if len(missing) > 0 {
		return apperr.NewValidationError("missing required fields", missing...)
	}

	var malformed []string
	if _, err := mail.ParseAddress(in.Customer.Email); err != nil {
		malformed = append(malformed, "customer.email")
	}
	if in.ShippingCost.IsNegative() {
		malformed = append(malformed, "shipping_cost")
	}
	if len(malformed) > 0 {
		return apperr.NewValidationError("malformed fields", malformed...)
	}
	return nil
}

func normalizeCustomer(c Customer) Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Document = utils.DigitsOnly(c.Document)
	c.Phone = utils.DigitsOnly(c.Phone)
	return c
}
