package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCreditCard Method = "credit_card"
	MethodPix        Method = "pix"
	MethodBoleto     Method = "boleto"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCreditCard, MethodPix, MethodBoleto:
		return true
	}
	return false
}

// Gateway charge statuses returned on creation.
const (
	ChargeStatusPending = "pending"
	ChargeStatusPaid    = "paid"
	ChargeStatusFailed  = "failed"
)

type Customer struct {
	Name     string
	Email    string
	Document string
	Phone    string
}

type Address struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Country      string
}

type ChargeItem struct {
	Code        string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// ChargeParams are the method specific inputs supplied by the customer.
type ChargeParams struct {
	Method             Method     `json:"method"`
	CardToken          string     `json:"card_token,omitempty"`
	Installments       int        `json:"installments,omitempty"`
	StatementLabel     string     `json:"statement_descriptor,omitempty"`
	PixExpiresIn       int        `json:"pix_expires_in,omitempty"`
	BoletoDueAt        *time.Time `json:"boleto_due_at,omitempty"`
	BoletoInstructions string     `json:"boleto_instructions,omitempty"`
}

// ChargeRequest is the internal payment intent handed to the gateway.
type ChargeRequest struct {
	IdempotencyKey string
	OrderID        string
	OrderNumber    string
	Customer       Customer
	Shipping       Address
	ShippingCost   decimal.Decimal
	Items          []ChargeItem
	Params         ChargeParams
}

// Amount is the sum of items plus shipping, in major units.
func (r ChargeRequest) Amount() decimal.Decimal {
	total := r.ShippingCost
	for _, it := range r.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

type CardDisplay struct {
	AcquirerMessage string `json:"acquirer_message,omitempty"`
	LastFour        string `json:"last_four,omitempty"`
	Installments    int    `json:"installments,omitempty"`
}

type PixDisplay struct {
	QRCode    string     `json:"qr_code"`
	QRCodeURL string     `json:"qr_code_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type BoletoDisplay struct {
	URL     string     `json:"url"`
	Barcode string     `json:"barcode,omitempty"`
	Line    string     `json:"line,omitempty"`
	DueAt   *time.Time `json:"due_at,omitempty"`
}

// Display is what the customer needs to complete or confirm the payment.
// Exactly one of Card, Pix or Boleto is set.
type Display struct {
	Card         *CardDisplay   `json:"card,omitempty"`
	Pix          *PixDisplay    `json:"pix,omitempty"`
	Boleto       *BoletoDisplay `json:"boleto,omitempty"`
	Instructions []string       `json:"instructions,omitempty"`
}

type ChargeResult struct {
	TransactionID string          `json:"transaction_id"`
	ChargeID      string          `json:"charge_id,omitempty"`
	Status        string          `json:"status"`
	Method        Method          `json:"method"`
	AmountCents   int64           `json:"amount"`
	Display       Display         `json:"display"`
	RawResponse   json.RawMessage `json:"-"`
}

// Transaction mirrors the gateway-side record of a charge.
type Transaction struct {
	TransactionID string
	OrderID       *string
	Status        string
	PaymentData   json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type AttemptState string

const (
	AttemptPending   AttemptState = "pending"
	AttemptSucceeded AttemptState = "succeeded"

	// AttemptFailed means no charge exists at the gateway.
	AttemptFailed AttemptState = "failed"
	// AttemptRefused means the gateway created the charge and refused it.
	AttemptRefused AttemptState = "refused"
	// AttemptAmbiguous means the gateway may or may not have created the
	// charge. Only a webhook or an operator can resolve it.
	AttemptAmbiguous AttemptState = "ambiguous"
)

type ChargeAttempt struct {
	ID             string
	IdempotencyKey string
	OrderID        string
	Method         Method
	State          AttemptState
	TransactionID  *string
	Error          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
