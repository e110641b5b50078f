package graph

import (
	"context"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/graph/model"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

// Cart returns the caller's cart. A caller without a cart gets an empty one.
func (r *queryResolver) Cart(ctx context.Context) (*model.Cart, error) {
	identity, err := middleware.CartIdentityFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.loadCart(ctx, identity)
}

func (r *Resolver) loadCart(ctx context.Context, identity cart.Identity) (*model.Cart, error) {
	c, err := r.CartSvc.GetCart(ctx, identity)
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to load cart",
			zap.String("cart", identity.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return MapCartToGraphQL(c), nil
}

func (r *mutationResolver) AddToCart(ctx context.Context, input model.AddToCartInput) (*model.CartItem, error) {
	identity, err := middleware.CartIdentityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("cart", identity.String()),
		zap.String("product_id", input.ProductID),
		zap.Int32("quantity", input.Quantity),
	)

	item, err := r.CartSvc.AddToCart(ctx, cart.AddItemParams{
		Identity:  identity,
		ProductID: input.ProductID,
		VariantID: utils.PtrString(input.VariantID),
		Quantity:  int(input.Quantity),
	})
	if err != nil {
		log.Warn("failed to add item to cart", zap.Error(err))
		return nil, err
	}

	log.Info("cart item added", zap.Int("final_qty", item.Quantity))
	return MapCartItemToGraphQL(item), nil
}

// UpdateCartItem sets the quantity of a line. Zero removes it.
func (r *mutationResolver) UpdateCartItem(ctx context.Context, input model.UpdateCartItemInput) (*model.Cart, error) {
	identity, err := middleware.CartIdentityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	err = r.CartSvc.UpdateQuantity(ctx, cart.UpdateItemParams{
		Identity:  identity,
		ProductID: input.ProductID,
		VariantID: utils.PtrString(input.VariantID),
		Quantity:  int(input.Quantity),
	})
	if err != nil {
		return nil, err
	}
	return r.loadCart(ctx, identity)
}

func (r *mutationResolver) RemoveFromCart(ctx context.Context, input model.RemoveFromCartInput) (*model.Cart, error) {
	identity, err := middleware.CartIdentityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	err = r.CartSvc.RemoveFromCart(ctx, cart.RemoveItemParams{
		Identity:  identity,
		ProductID: input.ProductID,
		VariantID: utils.PtrString(input.VariantID),
	})
	if err != nil {
		return nil, err
	}
	return r.loadCart(ctx, identity)
}

// MergeCart moves the anonymous session cart into the logged in user's
// cart. Both the access token and X-Session-ID must be present.
func (r *mutationResolver) MergeCart(ctx context.Context) (*model.Cart, error) {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	sessionID := utils.GetSessionIDFromContext(ctx)
	if sessionID == "" {
		return nil, apperr.NewValidationError("session id is required", "session_id")
	}

	if err := r.CartSvc.MergeSessionIntoUser(ctx, sessionID, userID); err != nil {
		logger.FromCtx(ctx).Error("failed to merge carts",
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}
	return r.loadCart(ctx, cart.ForUser(userID))
}
