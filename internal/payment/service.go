package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderReader interface {
	FindByID(ctx context.Context, id string) (*order.Order, error)
	SetPaymentMethod(ctx context.Context, orderID, method string) error
}

// ChargeRecorder writes a freshly created charge onto the order and the
// transaction mirror.
type ChargeRecorder interface {
	RecordCharge(ctx context.Context, orderID string, result *ChargeResult) error
}

type Service interface {
	Charge(ctx context.Context, orderID string, params ChargeParams) (*ChargeResult, error)
}

type service struct {
	orders   OrderReader
	repo     Repository
	gateway  Gateway
	recorder ChargeRecorder
	now      func() time.Time
}

func NewService(orders OrderReader, repo Repository, gateway Gateway, recorder ChargeRecorder) Service {
	return &service{
		orders:   orders,
		repo:     repo,
		gateway:  gateway,
		recorder: recorder,
		now:      time.Now,
	}
}

// Charge creates one gateway charge for an order awaiting payment. Every call
// gets a fresh idempotency key recorded as a charge attempt. An attempt whose
// outcome is unknown blocks further charges for the order, and so does a
// refused charge; only attempts that provably created nothing are retried.
func (s *service) Charge(ctx context.Context, orderID string, params ChargeParams) (*ChargeResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Charge"),
		zap.String("order_id", orderID),
		zap.String("payment_method", string(params.Method)),
	)

	if !params.Method.Valid() {
		return nil, apperr.NewValidationError("unsupported payment method", "method")
	}
	if _, err := BuildPayment(params, s.now()); err != nil {
		return nil, err
	}

	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusAwaitingPayment {
		log.Warn("charge requested for order not awaiting payment", zap.String("status", string(o.Status)))
		return nil, fmt.Errorf("%w: %w", order.ErrOrderNotAwaitingCharge,
			apperr.NewValidationError("order is not awaiting payment", "order_id"))
	}
	if !o.Total.IsPositive() {
		return nil, apperr.NewValidationError("order total must be positive", "total")
	}

	last, err := s.repo.LatestAttempt(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		switch last.State {
		case AttemptAmbiguous, AttemptPending:
			log.Warn("previous charge attempt has unknown outcome", zap.String("attempt_id", last.ID))
			return nil, fmt.Errorf("%w: attempt %s awaits confirmation", apperr.ErrAmbiguousOutcome, last.ID)
		case AttemptSucceeded:
			return nil, apperr.ErrAlreadyCharged
		case AttemptRefused:
			log.Info("charge already refused for order", zap.String("attempt_id", last.ID))
			return nil, apperr.ErrChargeRefused
		}
	}

	if err := s.orders.SetPaymentMethod(ctx, orderID, string(params.Method)); err != nil {
		return nil, err
	}

	attempt := &ChargeAttempt{
		ID:             uuid.New().String(),
		IdempotencyKey: uuid.New().String(),
		OrderID:        orderID,
		Method:         params.Method,
		State:          AttemptPending,
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	log = log.With(zap.String("attempt_id", attempt.ID), zap.String("idempotency_key", attempt.IdempotencyKey))

	result, err := s.gateway.CreateCharge(ctx, chargeRequestFor(o, attempt.IdempotencyKey, params))
	if err != nil {
		state := AttemptFailed
		if errors.Is(err, apperr.ErrAmbiguousOutcome) {
			state = AttemptAmbiguous
		}
		log.Error("charge creation failed", zap.String("attempt_state", string(state)), zap.Error(err))
		s.finishAttempt(ctx, log, attempt.ID, state, "", err.Error())
		return nil, err
	}

	log = log.With(zap.String("transaction_id", result.TransactionID))

	state, errMsg := AttemptSucceeded, ""
	if result.Status == ChargeStatusFailed {
		state, errMsg = AttemptRefused, "charge refused"
	}
	s.finishAttempt(ctx, log, attempt.ID, state, result.TransactionID, errMsg)

	// The webhook re-establishes state if this write is lost.
	if s.recorder != nil {
		if err := s.recorder.RecordCharge(ctx, orderID, result); err != nil {
			log.Warn("failed to record charge", zap.Error(err))
		}
	}

	log.Info("charge created", zap.String("status", result.Status))
	return result, nil
}

func (s *service) finishAttempt(ctx context.Context, log *zap.Logger, attemptID string, state AttemptState, txID, errMsg string) {
	if err := s.repo.FinishAttempt(ctx, attemptID, state, txID, errMsg); err != nil {
		log.Error("failed to finish charge attempt", zap.String("attempt_state", string(state)), zap.Error(err))
	}
}

func chargeRequestFor(o *order.Order, idempotencyKey string, params ChargeParams) ChargeRequest {
	items := make([]ChargeItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ChargeItem{
			Code:        it.ProductID,
			Description: it.NameSnapshot,
			UnitPrice:   it.UnitPriceSnapshot,
			Quantity:    it.Quantity,
		})
	}

	return ChargeRequest{
		IdempotencyKey: idempotencyKey,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		Customer: Customer{
			Name:     o.Customer.Name,
			Email:    o.Customer.Email,
			Document: o.Customer.Document,
			Phone:    o.Customer.Phone,
		},
		Shipping: Address{
			Street:       o.Shipping.Street,
			Number:       o.Shipping.Number,
			Complement:   o.Shipping.Complement,
			Neighborhood: o.Shipping.Neighborhood,
			City:         o.Shipping.City,
			State:        o.Shipping.State,
			ZipCode:      o.Shipping.ZipCode,
			Country:      o.Shipping.Country,
		},
		ShippingCost: o.ShippingCost,
		Items:        items,
		Params:       params,
	}
}
