package catalog

import (
	"context"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// Lookup is what checkout and cart consume.
type Lookup interface {
	// GetProduct may be served from cache.
	GetProduct(ctx context.Context, id string) (*Product, error)
	// GetProductFresh always reads the repository and refreshes the cache.
	GetProductFresh(ctx context.Context, id string) (*Product, error)
}

type Service interface {
	Lookup
	GetCategory(ctx context.Context, id string) (*Category, error)
	UpdatePrice(ctx context.Context, id string, price float64) error
	UpdateStock(ctx context.Context, id string, stock int) error
	Invalidate(id string)
	InvalidateAll()
}

type service struct {
	repo       Repository
	products   Cache[Product]
	categories Cache[Category]
}

func NewService(repo Repository, products Cache[Product], categories Cache[Category]) Service {
	return &service{repo: repo, products: products, categories: categories}
}

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	if p, ok := s.products.Get(id); ok {
		return &p, nil
	}
	return s.GetProductFresh(ctx, id)
}

func (s *service) GetProductFresh(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.products.Add(id, *p)
	return p, nil
}

func (s *service) GetCategory(ctx context.Context, id string) (*Category, error) {
	if c, ok := s.categories.Get(id); ok {
		return &c, nil
	}
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	s.categories.Add(id, *c)
	return c, nil
}

func (s *service) UpdatePrice(ctx context.Context, id string, price float64) error {
	if err := s.repo.UpdatePrice(ctx, id, price); err != nil {
		return err
	}
	s.Invalidate(id)
	logger.FromCtx(ctx).Info("product price updated",
		zap.String("product_id", id),
		zap.Float64("price", price),
	)
	return nil
}

func (s *service) UpdateStock(ctx context.Context, id string, stock int) error {
	if err := s.repo.UpdateStock(ctx, id, stock); err != nil {
		return err
	}
	s.Invalidate(id)
	return nil
}

func (s *service) Invalidate(id string) {
	s.products.Remove(id)
}

func (s *service) InvalidateAll() {
	s.products.Purge()
	s.categories.Purge()
}
