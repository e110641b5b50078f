package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-be/internal/apperr"
	"storefront-be/internal/db"
	"storefront-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const orderNumberConstraint = "orders_order_number_key"

type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)
	FindByPaymentReference(ctx context.Context, paymentID string) (*Order, error)
	// ApplyPaymentUpdate writes the payment fields only while the order is
	// still awaiting payment. It reports whether a row was changed.
	ApplyPaymentUpdate(ctx context.Context, orderID string, u PaymentUpdate) (bool, error)
	SetPaymentMethod(ctx context.Context, orderID, method string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func notFound(ref string) error {
	return fmt.Errorf("%w: %w", ErrOrderNotFound, apperr.NotFound("order", ref))
}

// CreateOrder inserts the order and its items in one transaction.
func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int("item_count", len(o.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return apperr.Storage("begin create order", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, session_id, status,
			customer_data, shipping_data, payment_method,
			subtotal, shipping_cost, total, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
	`,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.SessionID,
		o.Status,
		o.Customer,
		o.Shipping,
		o.PaymentMethod,
		o.Subtotal,
		o.ShippingCost,
		o.Total,
		o.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if db.IsUniqueViolation(err) && errors.As(err, &pqErr) && pqErr.Constraint == orderNumberConstraint {
			log.Warn("order number collision")
			return ErrDuplicateOrderNumber
		}
		log.Error("failed to insert order", zap.Error(err))
		return apperr.Storage("insert order", err)
	}

	for i, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, variant_id, name_snapshot,
				unit_price_snapshot, quantity, total
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			item.ID,
			o.ID,
			item.ProductID,
			item.VariantID,
			item.NameSnapshot,
			item.UnitPriceSnapshot,
			item.Quantity,
			item.Total,
		)
		if err != nil {
			log.Error("failed to insert order item",
				zap.Int("item_index", i),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
			return apperr.Storage("insert order item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return apperr.Storage("commit order", err)
	}

	committed = true
	log.Info("order created")
	return nil
}

const selectOrder = `
	SELECT
		id, order_number, user_id, session_id, status,
		payment_status, payment_id, payment_date, payment_method,
		customer_data, shipping_data,
		subtotal, shipping_cost, total, created_at, updated_at
	FROM orders
`

func (r *repository) findOne(ctx context.Context, where string, arg any) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx, selectOrder+where, arg).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.SessionID,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentID,
		&o.PaymentDate,
		&o.PaymentMethod,
		&o.Customer,
		&o.Shipping,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Total,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(fmt.Sprint(arg))
	}
	if err != nil {
		return nil, apperr.Storage("find order", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, name_snapshot,
			unit_price_snapshot, quantity, total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return nil, apperr.Storage("find order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.NameSnapshot,
			&it.UnitPriceSnapshot, &it.Quantity, &it.Total,
		); err != nil {
			return nil, apperr.Storage("scan order item", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate order items", err)
	}

	return &o, nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Order, error) {
	return r.findOne(ctx, "WHERE id = $1", id)
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return r.findOne(ctx, "WHERE order_number = $1", orderNumber)
}

func (r *repository) FindByPaymentReference(ctx context.Context, paymentID string) (*Order, error) {
	return r.findOne(ctx, "WHERE payment_id = $1", paymentID)
}

func (r *repository) ApplyPaymentUpdate(ctx context.Context, orderID string, u PaymentUpdate) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET
			status = $1,
			payment_status = $2,
			payment_id = COALESCE(NULLIF($3, ''), payment_id),
			payment_date = COALESCE($4, payment_date),
			updated_at = NOW()
		WHERE id = $5
		  AND status = 'awaiting_payment'
	`, u.Status, u.PaymentStatus, u.PaymentID, u.PaymentDate, orderID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to apply payment update",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return false, apperr.Storage("apply payment update", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("rows affected", err)
	}
	return affected > 0, nil
}

func (r *repository) SetPaymentMethod(ctx context.Context, orderID, method string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_method = $1, updated_at = NOW() WHERE id = $2
	`, method, orderID)
	if err != nil {
		return apperr.Storage("set payment method", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(orderID)
	}
	return nil
}
