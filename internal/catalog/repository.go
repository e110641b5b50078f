package catalog

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/apperr"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	UpdatePrice(ctx context.Context, id string, price float64) error
	UpdateStock(ctx context.Context, id string, stock int) error
	GetCategory(ctx context.Context, id string) (*Category, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, status, category_id, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Status, &p.CategoryID, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to query product",
			zap.String("product_id", id),
			zap.Error(err),
		)
		return nil, apperr.Storage("get product", err)
	}

	return &p, nil
}

func (r *repository) UpdatePrice(ctx context.Context, id string, price float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET price = $1, updated_at = NOW() WHERE id = $2
	`, price, id)
	if err != nil {
		return apperr.Storage("update product price", err)
	}
	return requireAffected(res, id)
}

func (r *repository) UpdateStock(ctx context.Context, id string, stock int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2
	`, stock, id)
	if err != nil {
		return apperr.Storage("update product stock", err)
	}
	return requireAffected(res, id)
}

func (r *repository) GetCategory(ctx context.Context, id string) (*Category, error) {
	var c Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, parent_id FROM categories WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category", id)
	}
	if err != nil {
		return nil, apperr.Storage("get category", err)
	}
	return &c, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}
