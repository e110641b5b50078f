package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"storefront-be/internal/cart"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaymentApproved Status = "payment_approved"
	StatusCanceled        Status = "canceled"
)

// Terminal statuses are never overwritten by later payment events.
func (s Status) Terminal() bool {
	return s == StatusPaymentApproved || s == StatusCanceled
}

type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        *uint           `json:"user_id,omitempty"`
	SessionID     *string         `json:"session_id,omitempty"`
	Status        Status          `json:"status"`
	PaymentStatus *string         `json:"payment_status,omitempty"`
	PaymentID     *string         `json:"payment_id,omitempty"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	PaymentMethod *string         `json:"payment_method,omitempty"`
	Customer      Customer        `json:"customer"`
	Shipping      ShippingAddress `json:"shipping"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"order_id"`
	ProductID         string          `json:"product_id"`
	VariantID         string          `json:"variant_id,omitempty"`
	NameSnapshot      string          `json:"name"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price"`
	Quantity          int             `json:"quantity"`
	Total             decimal.Decimal `json:"total"`
}

// Customer is copied into the order at checkout and never follows later
// profile edits.
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
}

type ShippingAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Country      string `json:"country,omitempty"`
}

func (c Customer) Value() (driver.Value, error) { return json.Marshal(c) }

func (c *Customer) Scan(src any) error { return scanJSON(src, c) }

func (a ShippingAddress) Value() (driver.Value, error) { return json.Marshal(a) }

func (a *ShippingAddress) Scan(src any) error { return scanJSON(src, a) }

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported snapshot column type")
	}
}

// PaymentUpdate is the set written by reconciliation. Re-applying the same
// update leaves the order unchanged.
type PaymentUpdate struct {
	Status        Status
	PaymentStatus string
	PaymentID     string
	PaymentDate   *time.Time
}

type CheckoutInput struct {
	Identity      cart.Identity
	Customer      Customer
	Shipping      ShippingAddress
	ShippingCost  decimal.Decimal
	PaymentMethod string
}

type CheckoutResult struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
}
