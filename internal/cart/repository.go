package cart

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/apperr"
	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	GetCart(ctx context.Context, identity Identity) (*Cart, error)
	GetOrCreateCart(ctx context.Context, identity Identity) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID, variantID string, quantity int) (*CartItem, error)
	SetItemQuantity(ctx context.Context, cartID, productID, variantID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID, variantID string) error
	ClearCart(ctx context.Context, cartID string) error
	MergeSessionIntoUser(ctx context.Context, sessionID string, userID uint) (int, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func identityClause(identity Identity) (string, any) {
	if identity.UserID != nil {
		return "user_id = $1", *identity.UserID
	}
	return "session_id = $1", identity.SessionID
}

func findCart(ctx context.Context, q queryer, identity Identity) (*Cart, error) {
	clause, arg := identityClause(identity)

	var c Cart
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, created_at, updated_at
		FROM carts
		WHERE `+clause, arg).
		Scan(&c.ID, &c.UserID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func loadItems(ctx context.Context, q queryer, cartID string) ([]CartItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity, created_at, updated_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetCart returns the cart with its items, or an empty Cart with no ID when
// the identity has never added anything.
func (r *repository) GetCart(ctx context.Context, identity Identity) (*Cart, error) {
	c, err := findCart(ctx, r.db, identity)
	if err != nil {
		return nil, apperr.Storage("get cart", err)
	}
	if c == nil {
		return &Cart{}, nil
	}

	c.Items, err = loadItems(ctx, r.db, c.ID)
	if err != nil {
		return nil, apperr.Storage("get cart items", err)
	}
	return c, nil
}

func (r *repository) GetOrCreateCart(ctx context.Context, identity Identity) (*Cart, error) {
	var userID any
	var sessionID any
	if identity.UserID != nil {
		userID = *identity.UserID
	} else {
		sessionID = identity.SessionID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, session_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, uuid.New().String(), userID, sessionID)
	if err != nil {
		return nil, apperr.Storage("create cart", err)
	}

	c, err := findCart(ctx, r.db, identity)
	if err != nil {
		return nil, apperr.Storage("get cart", err)
	}
	if c == nil {
		return nil, apperr.Storage("get cart", errors.New("cart vanished after insert"))
	}
	return c, nil
}

func (r *repository) AddItem(ctx context.Context, cartID, productID, variantID string, quantity int) (*CartItem, error) {
	var it CartItem
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, cart_id, product_id, variant_id, quantity, created_at, updated_at
	`, uuid.New().String(), cartID, productID, variantID, quantity).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to add cart item",
			zap.String("cart_id", cartID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, apperr.Storage("add cart item", err)
	}
	return &it, nil
}

func (r *repository) SetItemQuantity(ctx context.Context, cartID, productID, variantID string, quantity int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE cart_id = $2 AND product_id = $3 AND variant_id = $4
	`, quantity, cartID, productID, variantID)
	if err != nil {
		return apperr.Storage("update cart item", err)
	}
	return requireAffected(res)
}

func (r *repository) RemoveItem(ctx context.Context, cartID, productID, variantID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND variant_id = $3
	`, cartID, productID, variantID)
	if err != nil {
		return apperr.Storage("remove cart item", err)
	}
	return requireAffected(res)
}

// ClearCart empties the cart but keeps the cart row.
func (r *repository) ClearCart(ctx context.Context, cartID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return apperr.Storage("clear cart", err)
	}
	return nil
}

// MergeSessionIntoUser moves the session cart's items into the user's cart,
// summing quantities of duplicate lines, then deletes the session cart.
// It returns the number of merged lines.
func (r *repository) MergeSessionIntoUser(ctx context.Context, sessionID string, userID uint) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Storage("begin merge", err)
	}
	defer tx.Rollback()

	session, err := findCart(ctx, tx, ForSession(sessionID))
	if err != nil {
		return 0, apperr.Storage("find session cart", err)
	}
	if session == nil {
		return 0, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, uuid.New().String(), userID)
	if err != nil {
		return 0, apperr.Storage("create user cart", err)
	}

	user, err := findCart(ctx, tx, ForUser(userID))
	if err != nil || user == nil {
		return 0, apperr.Storage("find user cart", errors.Join(err, errors.New("user cart missing")))
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity)
		SELECT gen_random_uuid(), $1, product_id, variant_id, quantity
		FROM cart_items
		WHERE cart_id = $2
		ON CONFLICT (cart_id, product_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
	`, user.ID, session.ID)
	if err != nil {
		return 0, apperr.Storage("merge cart items", err)
	}
	merged, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, session.ID); err != nil {
		return 0, apperr.Storage("delete session cart", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.Storage("commit merge", err)
	}
	return int(merged), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("rows affected", err)
	}
	if n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}
