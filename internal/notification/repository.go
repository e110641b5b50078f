package notification

import (
	"context"
	"database/sql"

	"storefront-be/internal/apperr"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// Save appends a notification with processed=false.
	Save(ctx context.Context, n *Notification) error
	// MarkProcessed flips processed once. It reports false when the row was
	// already processed.
	MarkProcessed(ctx context.Context, id string) (bool, error)
	ListUnprocessed(ctx context.Context, limit int) ([]Notification, error)
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

func (r *repository) Save(ctx context.Context, n *Notification) error {
	const q = `
	INSERT INTO notifications (
		id,
		transaction_id,
		event_type,
		current_status,
		old_status,
		raw_data,
		processed
	)
	VALUES ($1, $2, $3, $4, $5, $6, false)
	RETURNING created_at;
	`

	err := r.db.QueryRowContext(ctx, q,
		n.ID,
		nullIfEmpty(n.TransactionID),
		n.EventType,
		n.CurrentStatus,
		n.OldStatus,
		n.RawData,
	).Scan(&n.CreatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to store notification",
			zap.String("notification_id", n.ID),
			zap.String("transaction_id", n.TransactionID),
			zap.Int("raw_size", len(n.RawData)),
			zap.Error(err),
		)
		return apperr.Storage("save notification", err)
	}

	n.Processed = false
	return nil
}

func (r *repository) MarkProcessed(ctx context.Context, id string) (bool, error) {
	const q = `
	UPDATE notifications
	SET processed = true,
		processed_at = NOW()
	WHERE id = $1
	  AND processed = false;
	`

	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to mark notification processed",
			zap.String("notification_id", id),
			zap.Error(err),
		)
		return false, apperr.Storage("mark notification processed", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("rows affected", err)
	}
	return affected > 0, nil
}

// ListUnprocessed returns the oldest notifications still waiting for
// reconciliation.
func (r *repository) ListUnprocessed(ctx context.Context, limit int) ([]Notification, error) {
	const q = `
	SELECT id, COALESCE(transaction_id, ''), event_type, current_status, old_status, raw_data, created_at
	FROM notifications
	WHERE processed = false
	ORDER BY created_at ASC
	LIMIT $1;
	`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, apperr.Storage("list unprocessed notifications", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.TransactionID, &n.EventType, &n.CurrentStatus, &n.OldStatus, &n.RawData, &n.CreatedAt,
		); err != nil {
			return nil, apperr.Storage("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate notifications", err)
	}
	return out, nil
}
