package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront-be/internal/apperr"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// UpsertTransaction inserts or refreshes the gateway transaction mirror.
	// The order link is never cleared once set, and a final status is never
	// replaced by a non-final one.
	UpsertTransaction(ctx context.Context, tx Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)

	CreateAttempt(ctx context.Context, a *ChargeAttempt) error
	FinishAttempt(ctx context.Context, attemptID string, state AttemptState, transactionID, errMsg string) error
	LatestAttempt(ctx context.Context, orderID string) (*ChargeAttempt, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// FinalStatuses are gateway statuses after which a transaction only moves
// to another final status (paid to refunded, never paid to pending).
var FinalStatuses = []string{"paid", "refused", "failed", "canceled", "refunded", "chargedback"}

// IsFinalStatus matches case-insensitively, like the order status mapping.
func IsFinalStatus(status string) bool {
	status = strings.ToLower(status)
	for _, s := range FinalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

var upsertTransactionQuery = func() string {
	final := "('" + strings.Join(FinalStatuses, "', '") + "')"
	keep := fmt.Sprintf(
		"LOWER(payment_transactions.status) IN %s AND LOWER(EXCLUDED.status) NOT IN %s", final, final)

	return `
	INSERT INTO payment_transactions (
		transaction_id,
		order_id,
		status,
		payment_data,
		created_at,
		updated_at
	)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	ON CONFLICT (transaction_id)
	DO UPDATE SET
		order_id = COALESCE(payment_transactions.order_id, EXCLUDED.order_id),
		status = CASE WHEN ` + keep + `
			THEN payment_transactions.status
			ELSE EXCLUDED.status END,
		payment_data = CASE WHEN ` + keep + `
			THEN payment_transactions.payment_data
			ELSE COALESCE(EXCLUDED.payment_data, payment_transactions.payment_data) END,
		updated_at = NOW();
	`
}()

func (r *repository) UpsertTransaction(ctx context.Context, tx Transaction) error {
	var payload any
	if len(tx.PaymentData) > 0 {
		payload = []byte(tx.PaymentData)
	}

	if _, err := r.db.ExecContext(ctx, upsertTransactionQuery, tx.TransactionID, tx.OrderID, tx.Status, payload); err != nil {
		logger.FromCtx(ctx).Error("failed to upsert payment transaction",
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
		return apperr.Storage("upsert payment transaction", err)
	}
	return nil
}

func (r *repository) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	const q = `
	SELECT transaction_id, order_id, status, payment_data, created_at, updated_at
	FROM payment_transactions
	WHERE transaction_id = $1;
	`

	var (
		t   Transaction
		raw []byte
	)
	err := r.db.QueryRowContext(ctx, q, transactionID).Scan(
		&t.TransactionID, &t.OrderID, &t.Status, &raw, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("payment transaction", transactionID)
	}
	if err != nil {
		return nil, apperr.Storage("get payment transaction", err)
	}
	if len(raw) > 0 {
		t.PaymentData = json.RawMessage(raw)
	}
	return &t, nil
}

func (r *repository) CreateAttempt(ctx context.Context, a *ChargeAttempt) error {
	const q = `
	INSERT INTO charge_attempts (
		id,
		idempotency_key,
		order_id,
		method,
		state
	)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at, updated_at;
	`

	err := r.db.QueryRowContext(ctx, q, a.ID, a.IdempotencyKey, a.OrderID, a.Method, a.State).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to create charge attempt",
			zap.String("order_id", a.OrderID),
			zap.String("idempotency_key", a.IdempotencyKey),
			zap.Error(err),
		)
		return apperr.Storage("create charge attempt", err)
	}
	return nil
}

// FinishAttempt moves a pending attempt to its final state. Attempts that
// already left pending are not touched.
func (r *repository) FinishAttempt(ctx context.Context, attemptID string, state AttemptState, transactionID, errMsg string) error {
	const q = `
	UPDATE charge_attempts
	SET state = $2,
		transaction_id = COALESCE($3, transaction_id),
		error = $4,
		updated_at = NOW()
	WHERE id = $1
	  AND state = 'pending';
	`

	res, err := r.db.ExecContext(ctx, q, attemptID, state, nullIfEmpty(transactionID), nullIfEmpty(errMsg))
	if err != nil {
		logger.FromCtx(ctx).Error("failed to finish charge attempt",
			zap.String("attempt_id", attemptID),
			zap.String("state", string(state)),
			zap.Error(err),
		)
		return apperr.Storage("finish charge attempt", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("pending charge attempt", attemptID)
	}
	return nil
}

func (r *repository) LatestAttempt(ctx context.Context, orderID string) (*ChargeAttempt, error) {
	const q = `
	SELECT id, idempotency_key, order_id, method, state, transaction_id, error, created_at, updated_at
	FROM charge_attempts
	WHERE order_id = $1
	ORDER BY created_at DESC
	LIMIT 1;
	`

	var a ChargeAttempt
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&a.ID, &a.IdempotencyKey, &a.OrderID, &a.Method, &a.State,
		&a.TransactionID, &a.Error, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("latest charge attempt", err)
	}
	return &a, nil
}
