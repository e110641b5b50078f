package cart

import (
	"strconv"
	"time"
)

// Identity keys a cart. Exactly one of UserID or SessionID is set.
type Identity struct {
	UserID    *uint
	SessionID string
}

func ForUser(userID uint) Identity {
	return Identity{UserID: &userID}
}

func ForSession(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}

func (i Identity) Validate() error {
	hasUser := i.UserID != nil && *i.UserID != 0
	hasSession := i.SessionID != ""
	if hasUser == hasSession {
		return ErrInvalidIdentity
	}
	return nil
}

func (i Identity) String() string {
	if i.UserID != nil {
		return "user:" + strconv.FormatUint(uint64(*i.UserID), 10)
	}
	return "session:" + i.SessionID
}

type Cart struct {
	ID        string     `json:"id"`
	UserID    *uint      `json:"user_id,omitempty"`
	SessionID *string    `json:"session_id,omitempty"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

type CartItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AddItemParams struct {
	Identity  Identity
	ProductID string
	VariantID string
	Quantity  int
}

type UpdateItemParams struct {
	Identity  Identity
	ProductID string
	VariantID string
	Quantity  int
}

type RemoveItemParams struct {
	Identity  Identity
	ProductID string
	VariantID string
}
