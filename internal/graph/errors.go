package graph

import (
	"context"
	"errors"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

// Error codes carried in extensions.code.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeBadUserInput     = "BAD_USER_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
	CodeRateLimited      = "RATE_LIMITED"
	CodeGatewayError     = "PAYMENT_GATEWAY_ERROR"
	CodePaymentPending   = "PAYMENT_PENDING"
	CodeAlreadyCharged   = "ALREADY_CHARGED"
	CodeChargeRefused    = "CHARGE_REFUSED"
	CodeInternal         = "INTERNAL"
)

const (
	msgGatewayFailed   = "payment could not be processed, please try again"
	msgPaymentPending  = "payment is being confirmed"
	msgInternalFailure = "internal server error"
)

var (
	errUnauthenticated       = errors.New("login required")
	errForbidden             = errors.New("forbidden: admin only")
	errIntrospectionDisabled = errors.New("introspection is disabled")
	errInternal              = errors.New(msgInternalFailure)
)

// inputError reports an argument that passed schema validation but could
// not be bound to its Go type.
type inputError struct {
	arg string
	err error
}

func (e *inputError) Error() string {
	return "invalid argument " + e.arg + ": " + e.err.Error()
}

func (e *inputError) Unwrap() error { return e.err }

// ErrorPresenter maps the error taxonomy onto extensions.code. Gateway and
// storage details are logged, never returned.
func ErrorPresenter(ctx context.Context, err error) *gqlerror.Error {
	out := graphql.DefaultErrorPresenter(ctx, err)
	if out.Err == nil {
		// parser and validation errors
		return out
	}

	code, message, fields := classify(ctx, out.Err)
	out.Message = message
	if out.Extensions == nil {
		out.Extensions = map[string]any{}
	}
	out.Extensions["code"] = code
	if len(fields) > 0 {
		out.Extensions["fields"] = fields
	}
	return out
}

func classify(ctx context.Context, err error) (code, message string, fields []string) {
	log := logger.FromCtx(ctx)

	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		ge *apperr.PaymentGatewayError
		ie *inputError
	)

	switch {
	case errors.Is(err, apperr.ErrAmbiguousOutcome):
		return CodePaymentPending, msgPaymentPending, nil

	case errors.Is(err, apperr.ErrAlreadyCharged):
		return CodeAlreadyCharged, err.Error(), nil

	case errors.Is(err, apperr.ErrChargeRefused):
		return CodeChargeRefused, err.Error(), nil

	case errors.Is(err, order.ErrOrderNotAwaitingCharge):
		return CodeConflict, order.ErrOrderNotAwaitingCharge.Error(), nil

	case errors.As(err, &ve):
		return CodeValidationFailed, ve.Error(), ve.Fields

	case errors.As(err, &ie):
		return CodeBadUserInput, ie.Error(), []string{ie.arg}

	case errors.As(err, &nf):
		return CodeNotFound, nf.Error(), nil

	case errors.As(err, &ge):
		log.Error("payment gateway rejected request",
			zap.Int("gateway_status", ge.StatusCode),
			zap.String("gateway_message", ge.GatewayMessage),
		)
		return CodeGatewayError, msgGatewayFailed, nil

	case errors.Is(err, middleware.ErrNoCartIdentity), errors.Is(err, errUnauthenticated):
		return CodeUnauthenticated, err.Error(), nil

	case errors.Is(err, errForbidden):
		return CodeForbidden, err.Error(), nil

	case errors.Is(err, middleware.ErrRateLimited):
		return CodeRateLimited, err.Error(), nil

	case errors.Is(err, errIntrospectionDisabled), errors.Is(err, cart.ErrInvalidIdentity):
		return CodeBadUserInput, err.Error(), nil

	case errors.Is(err, cart.ErrInvalidQuantity):
		return CodeValidationFailed, err.Error(), []string{"quantity"}

	case errors.Is(err, cart.ErrProductRequired):
		return CodeValidationFailed, err.Error(), []string{"productId"}

	case errors.Is(err, cart.ErrCartItemNotFound):
		return CodeNotFound, err.Error(), nil

	case errors.Is(err, cart.ErrProductInactive), errors.Is(err, cart.ErrInsufficientStock):
		return CodeConflict, err.Error(), nil

	default:
		if apperr.IsStorage(err) {
			log.Error("storage failure", zap.Error(err))
		} else if !errors.Is(err, errInternal) {
			log.Error("unhandled error", zap.Error(err))
		}
		return CodeInternal, msgInternalFailure, nil
	}
}
