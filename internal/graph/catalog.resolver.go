package graph

import (
	"context"

	"storefront-be/internal/apperr"
	"storefront-be/internal/graph/model"
	"storefront-be/internal/logger"
	"storefront-be/internal/money"

	"go.uber.org/zap"
)

func (r *queryResolver) Product(ctx context.Context, id string) (*model.Product, error) {
	p, err := r.CatalogSvc.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return MapProductToGraphQL(p), nil
}

func (r *productResolver) Category(ctx context.Context, obj *model.Product) (*model.Category, error) {
	if obj.CategoryID == nil {
		return nil, nil
	}

	c, err := r.CatalogSvc.GetCategory(ctx, *obj.CategoryID)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return MapCategoryToGraphQL(c), nil
}

// UpdateProductPrice changes the list price. Orders already placed keep
// their price snapshot.
func (r *mutationResolver) UpdateProductPrice(ctx context.Context, productID string, price string) (*model.Product, error) {
	amount, err := money.Parse(price)
	if err != nil || amount.IsNegative() {
		return nil, apperr.NewValidationError("price must be a non-negative decimal", "price")
	}

	if err := r.CatalogSvc.UpdatePrice(ctx, productID, amount.Round(2).InexactFloat64()); err != nil {
		logger.FromCtx(ctx).Warn("failed to update price",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, err
	}
	return r.freshProduct(ctx, productID)
}

func (r *mutationResolver) UpdateProductStock(ctx context.Context, productID string, stock int32) (*model.Product, error) {
	if stock < 0 {
		return nil, apperr.NewValidationError("stock must not be negative", "stock")
	}

	if err := r.CatalogSvc.UpdateStock(ctx, productID, int(stock)); err != nil {
		logger.FromCtx(ctx).Warn("failed to update stock",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, err
	}
	return r.freshProduct(ctx, productID)
}

func (r *mutationResolver) freshProduct(ctx context.Context, productID string) (*model.Product, error) {
	p, err := r.CatalogSvc.GetProductFresh(ctx, productID)
	if err != nil {
		return nil, err
	}
	return MapProductToGraphQL(p), nil
}

// PurgeCatalogCache drops every cached product and category.
func (r *mutationResolver) PurgeCatalogCache(ctx context.Context) (bool, error) {
	r.CatalogSvc.InvalidateAll()
	logger.FromCtx(ctx).Info("catalog cache purged")
	return true, nil
}
