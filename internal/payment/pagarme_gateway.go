package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"storefront-be/internal/apperr"
	"storefront-be/internal/logger"
	"storefront-be/internal/money"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

const (
	DefaultPixExpiresIn   = 3600
	DefaultBoletoDueDays  = 3
	MaxInstallments       = 12
	maxGatewayMessageSize = 512
)

type Gateway interface {
	// CreateCharge performs one remote create-order call. A transport
	// failure returns an error wrapping apperr.ErrAmbiguousOutcome and must
	// not be retried.
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

type pagarmeGateway struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// ----------------- Constructor -----------------

func NewPagarmeGateway(secretKey, baseURL string, timeout time.Duration) Gateway {
	if secretKey == "" {
		logger.L().Warn("Pagar.me secret key is empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &pagarmeGateway{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// ----------------- Wire types -----------------

type pagarmeItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Quantity    int    `json:"quantity"`
}

type pagarmePhone struct {
	CountryCode string `json:"country_code"`
	AreaCode    string `json:"area_code"`
	Number      string `json:"number"`
}

type pagarmeCustomer struct {
	Name     string                  `json:"name"`
	Email    string                  `json:"email"`
	Document string                  `json:"document"`
	Type     string                  `json:"type"`
	Phones   map[string]pagarmePhone `json:"phones,omitempty"`
}

type pagarmeAddress struct {
	Line1   string `json:"line_1"`
	Line2   string `json:"line_2,omitempty"`
	ZipCode string `json:"zip_code"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type pagarmeShipping struct {
	Amount        int64          `json:"amount"`
	Description   string         `json:"description"`
	RecipientName string         `json:"recipient_name"`
	Address       pagarmeAddress `json:"address"`
}

type pagarmeOrderRequest struct {
	Code     string            `json:"code"`
	Items    []pagarmeItem     `json:"items"`
	Customer pagarmeCustomer   `json:"customer"`
	Shipping *pagarmeShipping  `json:"shipping,omitempty"`
	Payments []map[string]any  `json:"payments"`
	Metadata map[string]string `json:"metadata"`
}

type pagarmeTransaction struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	QRCode          string     `json:"qr_code"`
	QRCodeURL       string     `json:"qr_code_url"`
	ExpiresAt       *time.Time `json:"expires_at"`
	URL             string     `json:"url"`
	PDF             string     `json:"pdf"`
	Line            string     `json:"line"`
	Barcode         string     `json:"barcode"`
	DueAt           *time.Time `json:"due_at"`
	AcquirerMessage string     `json:"acquirer_message"`
	Installments    int        `json:"installments"`
	Card            *struct {
		LastFourDigits string `json:"last_four_digits"`
	} `json:"card"`
}

type pagarmeCharge struct {
	ID              string             `json:"id"`
	Status          string             `json:"status"`
	PaymentMethod   string             `json:"payment_method"`
	LastTransaction pagarmeTransaction `json:"last_transaction"`
}

type pagarmeOrderResponse struct {
	ID      string          `json:"id"`
	Code    string          `json:"code"`
	Amount  int64           `json:"amount"`
	Status  string          `json:"status"`
	Charges []pagarmeCharge `json:"charges"`
}

// ----------------- Method dispatch -----------------

// BuildPayment builds the method specific "payments" entry. It is pure and
// validates the params for the chosen method.
func BuildPayment(p ChargeParams, now time.Time) (map[string]any, error) {
	switch p.Method {
	case MethodCreditCard:
		installments := p.Installments
		if installments == 0 {
			installments = 1
		}
		if installments < 1 || installments > MaxInstallments {
			return nil, apperr.NewValidationError("installments must be between 1 and 12", "installments")
		}
		if strings.TrimSpace(p.CardToken) == "" {
			return nil, apperr.NewValidationError("card data is required", "card_token")
		}
		card := map[string]any{
			"installments": installments,
			"card_token":   p.CardToken,
		}
		if p.StatementLabel != "" {
			card["statement_descriptor"] = p.StatementLabel
		}
		return map[string]any{
			"payment_method": string(MethodCreditCard),
			"credit_card":    card,
		}, nil

	case MethodPix:
		expiresIn := p.PixExpiresIn
		if expiresIn == 0 {
			expiresIn = DefaultPixExpiresIn
		}
		if expiresIn < 0 {
			return nil, apperr.NewValidationError("pix expiration must be positive", "pix_expires_in")
		}
		return map[string]any{
			"payment_method": string(MethodPix),
			"pix": map[string]any{
				"expires_in": expiresIn,
			},
		}, nil

	case MethodBoleto:
		dueAt := now.AddDate(0, 0, DefaultBoletoDueDays)
		if p.BoletoDueAt != nil {
			if !p.BoletoDueAt.After(now) {
				return nil, apperr.NewValidationError("boleto due date must be in the future", "boleto_due_at")
			}
			dueAt = *p.BoletoDueAt
		}
		instructions := p.BoletoInstructions
		if instructions == "" {
			instructions = "Não receber após o vencimento"
		}
		return map[string]any{
			"payment_method": string(MethodBoleto),
			"boleto": map[string]any{
				"instructions": instructions,
				"due_at":       dueAt.UTC().Format(time.RFC3339),
			},
		}, nil
	}

	return nil, apperr.NewValidationError("unsupported payment method", "method")
}

func buildOrderRequest(req ChargeRequest, payment map[string]any) pagarmeOrderRequest {
	items := make([]pagarmeItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, pagarmeItem{
			Code:        it.Code,
			Description: it.Description,
			Amount:      money.ToMinorUnits(it.UnitPrice),
			Quantity:    it.Quantity,
		})
	}

	body := pagarmeOrderRequest{
		Code:     req.OrderNumber,
		Items:    items,
		Customer: buildCustomer(req.Customer),
		Payments: []map[string]any{payment},
		Metadata: map[string]string{
			"order_id":     req.OrderID,
			"order_number": req.OrderNumber,
		},
	}

	if req.Shipping.Street != "" {
		country := req.Shipping.Country
		if country == "" {
			country = "BR"
		}
		body.Shipping = &pagarmeShipping{
			Amount:        money.ToMinorUnits(req.ShippingCost),
			Description:   "Frete",
			RecipientName: req.Customer.Name,
			Address: pagarmeAddress{
				Line1:   strings.Join([]string{req.Shipping.Number, req.Shipping.Street, req.Shipping.Neighborhood}, ", "),
				Line2:   req.Shipping.Complement,
				ZipCode: utils.DigitsOnly(req.Shipping.ZipCode),
				City:    req.Shipping.City,
				State:   req.Shipping.State,
				Country: country,
			},
		}
	}

	return body
}

func buildCustomer(c Customer) pagarmeCustomer {
	doc := utils.DigitsOnly(c.Document)
	customerType := "individual"
	if len(doc) > 11 {
		customerType = "company"
	}

	pc := pagarmeCustomer{
		Name:     c.Name,
		Email:    c.Email,
		Document: doc,
		Type:     customerType,
	}

	phone := utils.DigitsOnly(c.Phone)
	if len(phone) > 11 && strings.HasPrefix(phone, "55") {
		phone = phone[2:]
	}
	if len(phone) >= 10 {
		pc.Phones = map[string]pagarmePhone{
			"mobile_phone": {CountryCode: "55", AreaCode: phone[:2], Number: phone[2:]},
		}
	}
	return pc
}

// ----------------- CreateCharge -----------------

func (g *pagarmeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.String("order_number", req.OrderNumber),
		zap.String("method", string(req.Params.Method)),
		zap.String("idempotency_key", req.IdempotencyKey),
	)

	payment, err := BuildPayment(req.Params, g.now())
	if err != nil {
		return nil, err
	}

	body := buildOrderRequest(req, payment)
	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("Failed to marshal charge request", zap.Error(err))
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(jsonBody))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}

	httpReq.SetBasicAuth(g.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	log.Info("Sending charge request to Pagar.me", zap.Int64("amount", money.ToMinorUnits(req.Amount())))

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		// The request may have reached the gateway.
		log.Error("Pagar.me request failed, outcome unknown", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperr.ErrAmbiguousOutcome, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body, outcome unknown", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, fmt.Errorf("%w: read response: %v", apperr.ErrAmbiguousOutcome, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("Pagar.me returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, &apperr.PaymentGatewayError{
			StatusCode:     resp.StatusCode,
			GatewayMessage: gatewayMessage(bodyBytes),
		}
	}

	var res pagarmeOrderResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil || res.ID == "" {
		log.Error("Malformed Pagar.me response", zap.ByteString("response", bodyBytes), zap.Error(err))
		return nil, &apperr.PaymentGatewayError{
			StatusCode:     resp.StatusCode,
			GatewayMessage: "malformed gateway response",
		}
	}

	result := &ChargeResult{
		TransactionID: res.ID,
		Status:        strings.ToLower(res.Status),
		Method:        req.Params.Method,
		AmountCents:   res.Amount,
		RawResponse:   json.RawMessage(bodyBytes),
	}
	if result.AmountCents == 0 {
		result.AmountCents = money.ToMinorUnits(req.Amount())
	}
	if len(res.Charges) > 0 {
		charge := res.Charges[0]
		result.ChargeID = charge.ID
		if charge.Status != "" {
			result.Status = strings.ToLower(charge.Status)
		}
		result.Display = buildDisplay(req.Params.Method, charge.LastTransaction, result.AmountCents)
	}

	log.Info("Pagar.me charge created",
		zap.String("transaction_id", result.TransactionID),
		zap.String("charge_id", result.ChargeID),
		zap.String("status", result.Status),
	)

	return result, nil
}

func buildDisplay(method Method, tx pagarmeTransaction, amountCents int64) Display {
	var d Display
	var paymentCode string

	switch method {
	case MethodCreditCard:
		d.Card = &CardDisplay{
			AcquirerMessage: tx.AcquirerMessage,
			Installments:    tx.Installments,
		}
		if tx.Card != nil {
			d.Card.LastFour = tx.Card.LastFourDigits
		}
	case MethodPix:
		d.Pix = &PixDisplay{
			QRCode:    tx.QRCode,
			QRCodeURL: tx.QRCodeURL,
			ExpiresAt: tx.ExpiresAt,
		}
		paymentCode = tx.QRCode
	case MethodBoleto:
		url := tx.URL
		if url == "" {
			url = tx.PDF
		}
		d.Boleto = &BoletoDisplay{
			URL:     url,
			Barcode: tx.Barcode,
			Line:    tx.Line,
			DueAt:   tx.DueAt,
		}
		paymentCode = tx.Line
	}

	d.Instructions = InjectVariables(GetInstructions(method), InstructionVars{
		"amount":       money.FormatBRL(money.FromMinorUnits(amountCents)),
		"payment_code": paymentCode,
	})
	return d
}

func gatewayMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return truncateMessage(parsed.Message, maxGatewayMessageSize)
	}
	return truncateMessage(strings.TrimSpace(string(body)), maxGatewayMessageSize)
}

// truncateMessage cuts msg to at most limit bytes without splitting a rune.
// Invalid UTF-8 from the gateway is replaced first.
func truncateMessage(msg string, limit int) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= limit {
		return msg
	}
	cut := 0
	for i, r := range msg {
		next := i + utf8.RuneLen(r)
		if next > limit {
			break
		}
		cut = next
	}
	return msg[:cut]
}
