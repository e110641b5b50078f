package graph

import (
	"strconv"
	"strings"
	"time"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/graph/model"
	"storefront-be/internal/money"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/utils"
)

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return utils.StrPtr(s)
}

func optTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return utils.StrPtr(t.Format(time.RFC3339))
}

// --- cart ---

func MapCartToGraphQL(c *cart.Cart) *model.Cart {
	out := &model.Cart{
		ID:        c.ID,
		SessionID: c.SessionID,
		Items:     make([]*model.CartItem, 0, len(c.Items)),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
	if c.UserID != nil {
		out.UserID = utils.StrPtr(strconv.FormatUint(uint64(*c.UserID), 10))
	}
	for i := range c.Items {
		out.Items = append(out.Items, MapCartItemToGraphQL(&c.Items[i]))
	}
	return out
}

func MapCartItemToGraphQL(it *cart.CartItem) *model.CartItem {
	return &model.CartItem{
		ID:        it.ID,
		CartID:    it.CartID,
		ProductID: it.ProductID,
		VariantID: optString(it.VariantID),
		Quantity:  int32(it.Quantity),
		CreatedAt: it.CreatedAt.Format(time.RFC3339),
		UpdatedAt: it.UpdatedAt.Format(time.RFC3339),
	}
}

// --- orders ---

func MapOrderToGraphQL(o *order.Order) *model.Order {
	out := &model.Order{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: o.PaymentStatus,
		PaymentID:     o.PaymentID,
		PaymentMethod: o.PaymentMethod,
		PaymentDate:   optTime(o.PaymentDate),
		Customer: &model.Customer{
			Name:     o.Customer.Name,
			Email:    o.Customer.Email,
			Document: o.Customer.Document,
			Phone:    o.Customer.Phone,
		},
		Shipping: &model.ShippingAddress{
			Street:       o.Shipping.Street,
			Number:       o.Shipping.Number,
			Complement:   optString(o.Shipping.Complement),
			Neighborhood: o.Shipping.Neighborhood,
			City:         o.Shipping.City,
			State:        o.Shipping.State,
			ZipCode:      o.Shipping.ZipCode,
			Country:      optString(o.Shipping.Country),
		},
		Items:        make([]*model.OrderItem, 0, len(o.Items)),
		Subtotal:     o.Subtotal.StringFixed(2),
		ShippingCost: o.ShippingCost.StringFixed(2),
		Total:        o.Total.StringFixed(2),
		TotalDisplay: money.FormatBRL(o.Total),
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, &model.OrderItem{
			ProductID: it.ProductID,
			VariantID: optString(it.VariantID),
			Name:      it.NameSnapshot,
			UnitPrice: it.UnitPriceSnapshot.StringFixed(2),
			Quantity:  int32(it.Quantity),
			Total:     it.Total.StringFixed(2),
		})
	}
	return out
}

func MapCheckoutResultToGraphQL(res *order.CheckoutResult) *model.CheckoutResult {
	return &model.CheckoutResult{
		OrderID:      res.OrderID,
		OrderNumber:  res.OrderNumber,
		Status:       string(res.Status),
		Total:        res.Total.StringFixed(2),
		TotalDisplay: money.FormatBRL(res.Total),
	}
}

func MapCheckoutInput(identity cart.Identity, in model.CheckoutInput) (order.CheckoutInput, error) {
	out := order.CheckoutInput{Identity: identity}

	if c := in.Customer; c != nil {
		out.Customer = order.Customer{
			Name:     utils.PtrString(c.Name),
			Email:    utils.PtrString(c.Email),
			Document: utils.PtrString(c.Document),
			Phone:    utils.PtrString(c.Phone),
		}
	}
	if s := in.Shipping; s != nil {
		out.Shipping = order.ShippingAddress{
			Street:       utils.PtrString(s.Street),
			Number:       utils.PtrString(s.Number),
			Complement:   utils.PtrString(s.Complement),
			Neighborhood: utils.PtrString(s.Neighborhood),
			City:         utils.PtrString(s.City),
			State:        utils.PtrString(s.State),
			ZipCode:      utils.PtrString(s.ZipCode),
			Country:      utils.PtrString(s.Country),
		}
	}
	if in.ShippingCost != nil {
		cost, err := money.Parse(*in.ShippingCost)
		if err != nil {
			return out, apperr.NewValidationError("shipping cost must be a decimal amount", "shipping_cost")
		}
		out.ShippingCost = cost
	}
	if in.PaymentMethod != nil {
		out.PaymentMethod = string(MapPaymentMethod(*in.PaymentMethod))
	}
	return out, nil
}

// --- payments ---

func MapPaymentMethod(m model.PaymentMethod) payment.Method {
	return payment.Method(strings.ToLower(string(m)))
}

func MapChargeParams(in model.CreateChargeInput) (payment.ChargeParams, error) {
	params := payment.ChargeParams{
		Method:             MapPaymentMethod(in.Method),
		CardToken:          utils.PtrString(in.CardToken),
		StatementLabel:     utils.PtrString(in.StatementDescriptor),
		BoletoInstructions: utils.PtrString(in.BoletoInstructions),
	}
	if in.Installments != nil {
		params.Installments = int(*in.Installments)
	}
	if in.PixExpiresIn != nil {
		params.PixExpiresIn = int(*in.PixExpiresIn)
	}
	if in.BoletoDueAt != nil && *in.BoletoDueAt != "" {
		due, err := parseDueDate(*in.BoletoDueAt)
		if err != nil {
			return params, apperr.NewValidationError("boleto due date must be RFC 3339 or YYYY-MM-DD", "boleto_due_at")
		}
		params.BoletoDueAt = &due
	}
	return params, nil
}

func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func MapChargeToGraphQL(res *payment.ChargeResult) *model.Charge {
	display := &model.PaymentDisplay{Instructions: res.Display.Instructions}
	if display.Instructions == nil {
		display.Instructions = []string{}
	}

	if c := res.Display.Card; c != nil {
		card := &model.CardDisplay{
			AcquirerMessage: optString(c.AcquirerMessage),
			LastFour:        optString(c.LastFour),
		}
		if c.Installments > 0 {
			n := int32(c.Installments)
			card.Installments = &n
		}
		display.Card = card
	}
	if p := res.Display.Pix; p != nil {
		display.Pix = &model.PixDisplay{
			QRCode:    p.QRCode,
			QRCodeURL: p.QRCodeURL,
			ExpiresAt: optTime(p.ExpiresAt),
		}
	}
	if b := res.Display.Boleto; b != nil {
		display.Boleto = &model.BoletoDisplay{
			URL:     b.URL,
			Barcode: optString(b.Barcode),
			Line:    optString(b.Line),
			DueAt:   optTime(b.DueAt),
		}
	}

	return &model.Charge{
		TransactionID: res.TransactionID,
		ChargeID:      optString(res.ChargeID),
		Status:        res.Status,
		Method:        model.PaymentMethod(strings.ToUpper(string(res.Method))),
		Amount:        res.AmountCents,
		Display:       display,
	}
}

func MapTransactionToGraphQL(tx *payment.Transaction) *model.PaymentTransaction {
	return &model.PaymentTransaction{
		TransactionID: tx.TransactionID,
		Status:        tx.Status,
		UpdatedAt:     tx.UpdatedAt.Format(time.RFC3339),
	}
}

// --- catalog ---

func MapProductToGraphQL(p *catalog.Product) *model.Product {
	return &model.Product{
		ID:         p.ID,
		Name:       p.Name,
		Price:      money.FromFloat(p.Price).StringFixed(2),
		Stock:      int32(p.Stock),
		Status:     p.Status,
		CategoryID: p.CategoryID,
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339),
	}
}

func MapCategoryToGraphQL(c *catalog.Category) *model.Category {
	return &model.Category{
		ID:       c.ID,
		Name:     c.Name,
		Slug:     c.Slug,
		ParentID: c.ParentID,
	}
}
