// Package model holds the GraphQL-facing types of schema.graphqls.
package model

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (e Role) IsValid() bool {
	switch e {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodBoleto     PaymentMethod = "BOLETO"
)

func (e PaymentMethod) IsValid() bool {
	switch e {
	case PaymentMethodCreditCard, PaymentMethodPix, PaymentMethodBoleto:
		return true
	}
	return false
}

type ChargeState string

const (
	ChargeStateCreated             ChargeState = "CREATED"
	ChargeStatePendingConfirmation ChargeState = "PENDING_CONFIRMATION"
)

type Cart struct {
	ID        string      `json:"id"`
	UserID    *string     `json:"userId,omitempty"`
	SessionID *string     `json:"sessionId,omitempty"`
	Items     []*CartItem `json:"items"`
	CreatedAt string      `json:"createdAt"`
	UpdatedAt string      `json:"updatedAt"`
}

type CartItem struct {
	ID        string  `json:"id"`
	CartID    string  `json:"cartId"`
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int32   `json:"quantity"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type AddToCartInput struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int32   `json:"quantity"`
}

type UpdateCartItemInput struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int32   `json:"quantity"`
}

type RemoveFromCartInput struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
}

type CustomerInput struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Document *string `json:"document,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type ShippingInput struct {
	Street       *string `json:"street,omitempty"`
	Number       *string `json:"number,omitempty"`
	Complement   *string `json:"complement,omitempty"`
	Neighborhood *string `json:"neighborhood,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	ZipCode      *string `json:"zipCode,omitempty"`
	Country      *string `json:"country,omitempty"`
}

type CheckoutInput struct {
	Customer      *CustomerInput `json:"customer,omitempty"`
	Shipping      *ShippingInput `json:"shipping,omitempty"`
	ShippingCost  *string        `json:"shippingCost,omitempty"`
	PaymentMethod *PaymentMethod `json:"paymentMethod,omitempty"`
}

type CheckoutResult struct {
	OrderID      string `json:"orderId"`
	OrderNumber  string `json:"orderNumber"`
	Status       string `json:"status"`
	Total        string `json:"total"`
	TotalDisplay string `json:"totalDisplay"`
}

type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
}

type ShippingAddress struct {
	Street       string  `json:"street"`
	Number       string  `json:"number"`
	Complement   *string `json:"complement,omitempty"`
	Neighborhood string  `json:"neighborhood"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	ZipCode      string  `json:"zipCode"`
	Country      *string `json:"country,omitempty"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Name      string  `json:"name"`
	UnitPrice string  `json:"unitPrice"`
	Quantity  int32   `json:"quantity"`
	Total     string  `json:"total"`
}

type PaymentTransaction struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	UpdatedAt     string `json:"updatedAt"`
}

// Order.transaction is resolved lazily from PaymentID.
type Order struct {
	ID            string           `json:"id"`
	OrderNumber   string           `json:"orderNumber"`
	Status        string           `json:"status"`
	PaymentStatus *string          `json:"paymentStatus,omitempty"`
	PaymentID     *string          `json:"paymentId,omitempty"`
	PaymentMethod *string          `json:"paymentMethod,omitempty"`
	PaymentDate   *string          `json:"paymentDate,omitempty"`
	Customer      *Customer        `json:"customer"`
	Shipping      *ShippingAddress `json:"shipping"`
	Items         []*OrderItem     `json:"items"`
	Subtotal      string           `json:"subtotal"`
	ShippingCost  string           `json:"shippingCost"`
	Total         string           `json:"total"`
	TotalDisplay  string           `json:"totalDisplay"`
	CreatedAt     string           `json:"createdAt"`
}

type CreateChargeInput struct {
	OrderID             string        `json:"orderId"`
	Method              PaymentMethod `json:"method"`
	CardToken           *string       `json:"cardToken,omitempty"`
	Installments        *int32        `json:"installments,omitempty"`
	StatementDescriptor *string       `json:"statementDescriptor,omitempty"`
	PixExpiresIn        *int32        `json:"pixExpiresIn,omitempty"`
	BoletoDueAt         *string       `json:"boletoDueAt,omitempty"`
	BoletoInstructions  *string       `json:"boletoInstructions,omitempty"`
}

type CardDisplay struct {
	AcquirerMessage *string `json:"acquirerMessage,omitempty"`
	LastFour        *string `json:"lastFour,omitempty"`
	Installments    *int32  `json:"installments,omitempty"`
}

type PixDisplay struct {
	QRCode    string  `json:"qrCode"`
	QRCodeURL string  `json:"qrCodeUrl"`
	ExpiresAt *string `json:"expiresAt,omitempty"`
}

type BoletoDisplay struct {
	URL     string  `json:"url"`
	Barcode *string `json:"barcode,omitempty"`
	Line    *string `json:"line,omitempty"`
	DueAt   *string `json:"dueAt,omitempty"`
}

type PaymentDisplay struct {
	Card         *CardDisplay   `json:"card,omitempty"`
	Pix          *PixDisplay    `json:"pix,omitempty"`
	Boleto       *BoletoDisplay `json:"boleto,omitempty"`
	Instructions []string       `json:"instructions"`
}

type Charge struct {
	TransactionID string          `json:"transactionId"`
	ChargeID      *string         `json:"chargeId,omitempty"`
	Status        string          `json:"status"`
	Method        PaymentMethod   `json:"method"`
	Amount        int64           `json:"amount"`
	Display       *PaymentDisplay `json:"display"`
}

type ChargePayload struct {
	State   ChargeState `json:"state"`
	Message *string     `json:"message,omitempty"`
	Charge  *Charge     `json:"charge,omitempty"`
}

type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ParentID *string `json:"parentId,omitempty"`
}

// CategoryID is not part of the schema. Product.category is resolved from it.
type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      string  `json:"price"`
	Stock      int32   `json:"stock"`
	Status     string  `json:"status"`
	CategoryID *string `json:"categoryId,omitempty"`
	UpdatedAt  string  `json:"updatedAt"`
}
