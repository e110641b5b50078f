package cart

import "errors"

var (
	// -- Identity --
	ErrInvalidIdentity = errors.New("cart identity must be exactly one of user or session")

	// -- Validation & Input --
	ErrInvalidQuantity   = errors.New("invalid cart quantity")
	ErrProductRequired   = errors.New("product ID is required")
	ErrProductInactive   = errors.New("product is not available")
	ErrInsufficientStock = errors.New("insufficient stock")

	// -- Resource State --
	ErrCartItemNotFound = errors.New("cart item not found")
)
