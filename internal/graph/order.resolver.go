package graph

import (
	"context"
	"errors"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/graph/model"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

func (r *mutationResolver) Checkout(ctx context.Context, input model.CheckoutInput) (*model.CheckoutResult, error) {
	identity, err := middleware.CartIdentityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	in, err := MapCheckoutInput(identity, input)
	if err != nil {
		return nil, err
	}

	res, err := r.OrderSvc.Checkout(ctx, in)
	if err != nil {
		logger.FromCtx(ctx).Warn("checkout failed",
			zap.String("cart", identity.String()),
			zap.Error(err),
		)
		return nil, err
	}

	logger.FromCtx(ctx).Info("order placed",
		zap.String("order_id", res.OrderID),
		zap.String("order_number", res.OrderNumber),
		zap.String("total", res.Total.StringFixed(2)),
	)
	return MapCheckoutResultToGraphQL(res), nil
}

// ownedBy reports whether the order was placed by the caller's cart.
func ownedBy(o *order.Order, identity cart.Identity) bool {
	if identity.UserID != nil {
		return o.UserID != nil && *o.UserID == *identity.UserID
	}
	return o.SessionID != nil && *o.SessionID == identity.SessionID
}

// loadOwnedOrder answers not found for orders of other carts, so order ids
// of other customers cannot be confirmed.
func (r *Resolver) loadOwnedOrder(ctx context.Context, orderID string) (*order.Order, error) {
	identity, err := middleware.CartIdentityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	o, err := r.OrderSvc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ownedBy(o, identity) {
		logger.FromCtx(ctx).Warn("order requested by another cart",
			zap.String("order_id", orderID),
			zap.String("cart", identity.String()),
		)
		return nil, apperr.NotFound("order", orderID)
	}
	return o, nil
}

func (r *queryResolver) Order(ctx context.Context, id string) (*model.Order, error) {
	o, err := r.loadOwnedOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return MapOrderToGraphQL(o), nil
}

// CreateCharge charges an owned order. An unknown gateway outcome is not an
// error for the client: the charge is reported as pending confirmation and
// the webhook settles it.
func (r *mutationResolver) CreateCharge(ctx context.Context, input model.CreateChargeInput) (*model.ChargePayload, error) {
	o, err := r.loadOwnedOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	params, err := MapChargeParams(input)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithFields(ctx, zap.String("order_id", o.ID))

	result, err := r.PaymentSvc.Charge(ctx, o.ID, params)
	if errors.Is(err, apperr.ErrAmbiguousOutcome) {
		logger.FromCtx(ctx).Warn("payment outcome unknown", zap.Error(err))
		return &model.ChargePayload{
			State:   model.ChargeStatePendingConfirmation,
			Message: utils.StrPtr(msgPaymentPending),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &model.ChargePayload{
		State:  model.ChargeStateCreated,
		Charge: MapChargeToGraphQL(result),
	}, nil
}

// Transaction reads the gateway mirror of the order's charge. The mirror
// may lag the order, so a missing row is not an error.
func (r *orderResolver) Transaction(ctx context.Context, obj *model.Order) (*model.PaymentTransaction, error) {
	if obj.PaymentID == nil || *obj.PaymentID == "" {
		return nil, nil
	}

	tx, err := r.Transactions.GetTransaction(ctx, *obj.PaymentID)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return MapTransactionToGraphQL(tx), nil
}
