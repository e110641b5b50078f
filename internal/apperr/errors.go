// Package apperr holds the error taxonomy shared by checkout, payment and
// reconciliation. Callers classify with errors.As / errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousOutcome means the gateway may or may not have created the
	// charge. The call must not be retried blindly.
	ErrAmbiguousOutcome = errors.New("payment outcome unknown")

	// ErrAlreadyCharged is returned when an order already has a successful
	// charge attempt.
	ErrAlreadyCharged = errors.New("order already has a charge")

	// ErrChargeRefused is returned when the gateway refused the order's
	// charge. The refusal cancels the order, so no new charge is attempted.
	ErrChargeRefused = errors.New("payment was refused")
)

// ValidationError reports missing or malformed checkout input.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := "validation failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	return msg
}

// NewValidationError builds a ValidationError for missing fields.
func NewValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: reason}
}

// NotFoundError is returned for missing orders, products, carts or transactions.
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Ref)
}

func NotFound(resource, ref string) *NotFoundError {
	return &NotFoundError{Resource: resource, Ref: ref}
}

// PaymentGatewayError carries a non-2xx or malformed gateway response.
type PaymentGatewayError struct {
	StatusCode     int
	GatewayMessage string
}

func (e *PaymentGatewayError) Error() string {
	return fmt.Sprintf("payment gateway error: status=%d message=%s", e.StatusCode, e.GatewayMessage)
}

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func IsGateway(err error) bool {
	var ge *PaymentGatewayError
	return errors.As(err, &ge)
}
