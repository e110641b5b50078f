package cart

import (
	"context"

	"storefront-be/internal/catalog"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// Service defines the business logic for carts.
type Service interface {
	GetCart(ctx context.Context, identity Identity) (*Cart, error)
	AddToCart(ctx context.Context, params AddItemParams) (*CartItem, error)
	UpdateQuantity(ctx context.Context, params UpdateItemParams) error
	RemoveFromCart(ctx context.Context, params RemoveItemParams) error
	ClearCart(ctx context.Context, cartID string) error
	MergeSessionIntoUser(ctx context.Context, sessionID string, userID uint) error
}

type service struct {
	repo    Repository
	catalog catalog.Lookup
}

func NewService(repo Repository, lookup catalog.Lookup) Service {
	return &service{repo: repo, catalog: lookup}
}

func (s *service) GetCart(ctx context.Context, identity Identity) (*Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, identity)
}

// AddToCart adds quantity of a product, creating the cart on first use.
func (s *service) AddToCart(ctx context.Context, params AddItemParams) (*CartItem, error) {
	if err := params.Identity.Validate(); err != nil {
		return nil, err
	}
	if params.ProductID == "" {
		return nil, ErrProductRequired
	}
	if params.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	log := logger.FromCtx(ctx).With(
		zap.String("cart", params.Identity.String()),
		zap.String("product_id", params.ProductID),
		zap.Int("quantity", params.Quantity),
	)

	// 1. Product must exist and be sellable
	product, err := s.catalog.GetProduct(ctx, params.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active() {
		return nil, ErrProductInactive
	}

	// 2. Stock check against the quantity already in the cart
	cart, err := s.repo.GetCart(ctx, params.Identity)
	if err != nil {
		return nil, err
	}
	finalQty := params.Quantity
	for _, it := range cart.Items {
		if it.ProductID == params.ProductID && it.VariantID == params.VariantID {
			finalQty += it.Quantity
		}
	}
	if product.Stock < finalQty {
		log.Warn("insufficient stock", zap.Int("stock", product.Stock), zap.Int("requested", finalQty))
		return nil, ErrInsufficientStock
	}

	// 3. Lazily create the cart
	if cart.ID == "" {
		cart, err = s.repo.GetOrCreateCart(ctx, params.Identity)
		if err != nil {
			return nil, err
		}
		log.Info("cart created", zap.String("cart_id", cart.ID))
	}

	item, err := s.repo.AddItem(ctx, cart.ID, params.ProductID, params.VariantID, params.Quantity)
	if err != nil {
		return nil, err
	}

	log.Debug("cart item added", zap.Int("line_quantity", item.Quantity))
	return item, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (s *service) UpdateQuantity(ctx context.Context, params UpdateItemParams) error {
	if err := params.Identity.Validate(); err != nil {
		return err
	}
	if params.ProductID == "" {
		return ErrProductRequired
	}

	cart, err := s.repo.GetCart(ctx, params.Identity)
	if err != nil {
		return err
	}
	if cart.ID == "" {
		return ErrCartItemNotFound
	}

	if params.Quantity <= 0 {
		return s.repo.RemoveItem(ctx, cart.ID, params.ProductID, params.VariantID)
	}

	product, err := s.catalog.GetProduct(ctx, params.ProductID)
	if err != nil {
		return err
	}
	if product.Stock < params.Quantity {
		return ErrInsufficientStock
	}

	return s.repo.SetItemQuantity(ctx, cart.ID, params.ProductID, params.VariantID, params.Quantity)
}

func (s *service) RemoveFromCart(ctx context.Context, params RemoveItemParams) error {
	if err := params.Identity.Validate(); err != nil {
		return err
	}
	if params.ProductID == "" {
		return ErrProductRequired
	}

	cart, err := s.repo.GetCart(ctx, params.Identity)
	if err != nil {
		return err
	}
	if cart.ID == "" {
		return ErrCartItemNotFound
	}
	return s.repo.RemoveItem(ctx, cart.ID, params.ProductID, params.VariantID)
}

func (s *service) ClearCart(ctx context.Context, cartID string) error {
	if cartID == "" {
		return nil
	}
	return s.repo.ClearCart(ctx, cartID)
}

// MergeSessionIntoUser runs when an anonymous session authenticates.
func (s *service) MergeSessionIntoUser(ctx context.Context, sessionID string, userID uint) error {
	if sessionID == "" || userID == 0 {
		return ErrInvalidIdentity
	}

	merged, err := s.repo.MergeSessionIntoUser(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("session cart merged",
		zap.String("session_id", sessionID),
		zap.Uint("user_id", userID),
		zap.Int("lines", merged),
	)
	return nil
}
