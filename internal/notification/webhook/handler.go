package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"storefront-be/internal/logger"
	"storefront-be/internal/notification"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds a single webhook delivery.
const MaxBodyBytes = 1 << 20

var ErrInvalidToken = errors.New("invalid webhook token")

// Reconciler applies a stored notification to its order and marks it
// processed.
type Reconciler interface {
	Reconcile(ctx context.Context, n *notification.Notification, ev notification.Event) error
}

type Options struct {
	// Token, when set, must match the X-Webhook-Token header or the basic
	// auth user of the delivery.
	Token string
	// AckOnProcessingError answers 200 even when reconciliation hits a
	// storage error. The notification stays unprocessed for replay.
	AckOnProcessingError bool
}

type Handler struct {
	store      notification.Repository
	reconciler Reconciler
	opts       Options
}

func NewWebhookHandler(store notification.Repository, reconciler Reconciler, opts Options) *Handler {
	return &Handler{
		store:      store,
		reconciler: reconciler,
		opts:       opts,
	}
}

func (h *Handler) VerifySignature(r *http.Request) error {
	expected := h.opts.Token
	if expected == "" {
		return nil // skip in dev
	}

	if r.Header.Get("X-Webhook-Token") == expected {
		return nil
	}
	if user, _, ok := r.BasicAuth(); ok && user == expected {
		return nil
	}
	return ErrInvalidToken
}

// PaymentWebhookHandler stores the delivery verbatim before anything else,
// then reconciles it.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx).With(zap.String("handler", "PaymentWebhook"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Step 1 – Verify token
	if err := h.VerifySignature(r); err != nil {
		log.Warn("rejected webhook with invalid token", zap.String("remote_addr", r.RemoteAddr))
		utils.WriteJSONError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Step 2 – Read body
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	defer r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook body too large", zap.Int64("limit", tooLarge.Limit))
			utils.WriteJSONError(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Error("failed to read webhook body", zap.Error(err))
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Step 3 – Persist whatever arrived
	ev := notification.ParseEvent(body)
	n := &notification.Notification{
		ID:            uuid.New().String(),
		TransactionID: ev.Reference,
		EventType:     ev.Type,
		CurrentStatus: ev.Status,
		RawData:       body,
	}
	if ev.OldStatus != "" {
		old := ev.OldStatus
		n.OldStatus = &old
	}

	log = log.With(
		zap.String("notification_id", n.ID),
		zap.String("event_type", ev.Type),
		zap.String("kind", string(ev.Kind)),
		zap.String("transaction_id", ev.Reference),
	)

	if err := h.store.Save(ctx, n); err != nil {
		log.Error("failed to store webhook, asking gateway to retry", zap.Error(err))
		utils.WriteJSONError(w, "failed to store notification", http.StatusInternalServerError)
		return
	}

	// Step 4 – Reconcile
	if err := h.reconciler.Reconcile(ctx, n, ev); err != nil {
		if !h.opts.AckOnProcessingError {
			log.Error("reconciliation failed, asking gateway to retry", zap.Error(err))
			utils.WriteJSONError(w, "failed to process notification", http.StatusInternalServerError)
			return
		}
		log.Error("reconciliation failed, acknowledging anyway", zap.Error(err))
	}

	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
