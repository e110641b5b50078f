package order

import "errors"

var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrDuplicateOrderNumber   = errors.New("order number already exists")
	ErrOrderNumberExhausted   = errors.New("could not generate a unique order number")
	ErrOrderNotAwaitingCharge = errors.New("order is not awaiting payment")
)
