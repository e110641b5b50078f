package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-be/internal/apperr"
	"storefront-be/internal/cart"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/utils"

	"github.com/99designs/gqlgen/graphql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type gqlError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path"`
	Extensions map[string]any `json:"extensions"`
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []gqlError                 `json:"errors"`
}

type testAPI struct {
	carts    *MockCartService
	orders   *MockOrderService
	payments *MockPaymentService
	catalog  *MockCatalogService
	txs      *MockTransactionReader
	handler  http.Handler
}

func newTestAPI(exts ...graphql.HandlerExtension) *testAPI {
	api := &testAPI{
		carts:    new(MockCartService),
		orders:   new(MockOrderService),
		payments: new(MockPaymentService),
		catalog:  new(MockCatalogService),
		txs:      new(MockTransactionReader),
	}
	api.handler = NewServer(NewSchema(&Resolver{
		CartSvc:      api.carts,
		OrderSvc:     api.orders,
		PaymentSvc:   api.payments,
		CatalogSvc:   api.catalog,
		Transactions: api.txs,
	}), exts...)
	return api
}

// do posts a GraphQL request. ctx carries the identity the HTTP middlewares
// would have resolved.
func (api *testAPI) do(t *testing.T, ctx context.Context, query string, vars map[string]any) (*httptest.ResponseRecorder, gqlResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(string(body))).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func code(e gqlError) any {
	return e.Extensions["code"]
}

func TestExec_SelectionShape(t *testing.T) {
	api := newTestAPI()
	api.carts.On("GetCart", mock.Anything, cart.ForSession("sess-1")).Return(&cart.Cart{
		ID:    "c1",
		Items: []cart.CartItem{{ID: "i1", ProductID: "P1", Quantity: 2}},
	}, nil)

	rec, resp := api.do(t, sessionCtx("sess-1"), `{ myCart: cart { __typename id items { quantity productId } } }`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Errors)
	// aliases, selection order and nothing unselected
	assert.Contains(t, rec.Body.String(),
		`{"myCart":{"__typename":"Cart","id":"c1","items":[{"quantity":2,"productId":"P1"}]}}`)
}

func TestExec_ErrorsCarryCodeAndPath(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		api := newTestAPI()

		rec, resp := api.do(t, context.Background(), `{ cart { id } }`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, CodeUnauthenticated, code(resp.Errors[0]))
		assert.Equal(t, []any{"cart"}, resp.Errors[0].Path)
		assert.JSONEq(t, `null`, string(resp.Data["cart"]))
	})

	t.Run("validation fields", func(t *testing.T) {
		api := newTestAPI()
		api.orders.On("Checkout", mock.Anything, mock.Anything).
			Return(nil, apperr.NewValidationError("missing required fields", "customer.email", "shipping.city"))

		_, resp := api.do(t, sessionCtx("sess-1"), `mutation { checkout(input: {}) { orderId } }`, nil)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, CodeValidationFailed, code(resp.Errors[0]))
		assert.Equal(t, []any{"customer.email", "shipping.city"}, resp.Errors[0].Extensions["fields"])
	})

	t.Run("gateway details stay in the logs", func(t *testing.T) {
		api := newTestAPI()
		o := sessionOrder("sess-1")
		api.orders.On("GetOrder", mock.Anything, o.ID).Return(o, nil)
		api.payments.On("Charge", mock.Anything, o.ID, mock.Anything).
			Return(nil, &apperr.PaymentGatewayError{StatusCode: 422, GatewayMessage: "card_token invalid for merchant 123"})

		rec, resp := api.do(t, sessionCtx("sess-1"),
			`mutation($in: CreateChargeInput!) { createCharge(input: $in) { state } }`,
			map[string]any{"in": map[string]any{"orderId": o.ID, "method": "CREDIT_CARD", "cardToken": "tok_1", "installments": 3}},
		)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, CodeGatewayError, code(resp.Errors[0]))
		assert.Equal(t, msgGatewayFailed, resp.Errors[0].Message)
		assert.NotContains(t, rec.Body.String(), "merchant 123")
		api.payments.AssertCalled(t, "Charge", mock.Anything, o.ID, payment.ChargeParams{
			Method:       payment.MethodCreditCard,
			CardToken:    "tok_1",
			Installments: 3,
		})
	})

	t.Run("storage details stay in the logs", func(t *testing.T) {
		api := newTestAPI()
		api.carts.On("GetCart", mock.Anything, mock.Anything).
			Return(nil, apperr.Storage("get cart", fmt.Errorf("pq: password authentication failed")))

		rec, resp := api.do(t, sessionCtx("sess-1"), `{ cart { id } }`, nil)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, CodeInternal, code(resp.Errors[0]))
		assert.NotContains(t, rec.Body.String(), "pq:")
	})

	t.Run("panic becomes internal error", func(t *testing.T) {
		api := newTestAPI()
		api.carts.On("GetCart", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("nil map")
		})

		_, resp := api.do(t, sessionCtx("sess-1"), `{ cart { id } }`, nil)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, CodeInternal, code(resp.Errors[0]))
		assert.Equal(t, msgInternalFailure, resp.Errors[0].Message)
	})

	t.Run("schema violations are rejected before resolvers", func(t *testing.T) {
		api := newTestAPI()

		rec, resp := api.do(t, sessionCtx("sess-1"), `{ cart { total } }`, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotEmpty(t, resp.Errors)
		api.carts.AssertNotCalled(t, "GetCart", mock.Anything, mock.Anything)
	})

	t.Run("introspection is disabled", func(t *testing.T) {
		api := newTestAPI()

		_, resp := api.do(t, context.Background(), `{ __schema { queryType { name } } }`, nil)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, errIntrospectionDisabled.Error(), resp.Errors[0].Message)
	})
}

func TestExec_PendingCharge(t *testing.T) {
	api := newTestAPI()
	o := sessionOrder("sess-1")
	api.orders.On("GetOrder", mock.Anything, o.ID).Return(o, nil)
	api.payments.On("Charge", mock.Anything, o.ID, mock.Anything).
		Return(nil, fmt.Errorf("%w: context deadline exceeded", apperr.ErrAmbiguousOutcome))

	_, resp := api.do(t, sessionCtx("sess-1"),
		`mutation { createCharge(input: {orderId: "`+o.ID+`", method: PIX}) { state message charge { transactionId } } }`, nil)

	assert.Empty(t, resp.Errors)
	assert.JSONEq(t,
		`{"state":"PENDING_CONFIRMATION","message":"`+msgPaymentPending+`","charge":null}`,
		string(resp.Data["createCharge"]))
}

func TestExec_ObjectFieldResolvers(t *testing.T) {
	t.Run("order transaction through a fragment", func(t *testing.T) {
		api := newTestAPI()
		o := sessionOrder("sess-1")
		paymentID := "or_1"
		o.PaymentID = &paymentID
		o.Status = order.StatusPaymentApproved
		api.orders.On("GetOrder", mock.Anything, o.ID).Return(o, nil)
		api.txs.On("GetTransaction", mock.Anything, "or_1").Return(&payment.Transaction{TransactionID: "or_1", Status: "paid"}, nil)

		_, resp := api.do(t, sessionCtx("sess-1"),
			`query($id: ID!) { order(id: $id) { ...summary } } fragment summary on Order { status totalDisplay transaction { status } }`,
			map[string]any{"id": o.ID},
		)

		assert.Empty(t, resp.Errors)
		assert.JSONEq(t,
			`{"status":"payment_approved","totalDisplay":"R$ 220,00","transaction":{"status":"paid"}}`,
			string(resp.Data["order"]))
	})

	t.Run("field resolver is skipped when not selected", func(t *testing.T) {
		api := newTestAPI()
		o := sessionOrder("sess-1")
		api.orders.On("GetOrder", mock.Anything, o.ID).Return(o, nil)

		_, resp := api.do(t, sessionCtx("sess-1"), `{ order(id: "`+o.ID+`") { orderNumber items { name total } } }`, nil)

		assert.Empty(t, resp.Errors)
		assert.JSONEq(t,
			`{"orderNumber":"ORD-20260314-120000-001-0042","items":[{"name":"Camiseta","total":"200.00"}]}`,
			string(resp.Data["order"]))
		api.txs.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)
	})

	t.Run("failing field resolver nulls only its field", func(t *testing.T) {
		api := newTestAPI()
		api.catalog.On("GetProduct", mock.Anything, "P1").Return(camiseta(), nil)
		api.catalog.On("GetCategory", mock.Anything, "C1").Return(nil, apperr.Storage("get category", fmt.Errorf("timeout")))

		_, resp := api.do(t, context.Background(), `{ product(id: "P1") { name category { slug } } }`, nil)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, []any{"product", "category"}, resp.Errors[0].Path)
		assert.JSONEq(t, `{"name":"Camiseta","category":null}`, string(resp.Data["product"]))
	})
}

func TestExec_AuthDirective(t *testing.T) {
	admin := utils.SetRoleContext(utils.SetUserContext(context.Background(), 1), "ADMIN")
	customer := utils.SetUserContext(context.Background(), 2)

	t.Run("anonymous", func(t *testing.T) {
		api := newTestAPI()

		_, resp := api.do(t, sessionCtx("sess-1"), `mutation { purgeCatalogCache }`, nil)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, CodeUnauthenticated, code(resp.Errors[0]))
		api.catalog.AssertNotCalled(t, "InvalidateAll")
	})

	t.Run("customer", func(t *testing.T) {
		api := newTestAPI()

		_, resp := api.do(t, customer, `mutation { updateProductStock(productId: "P1", stock: 4) { stock } }`, nil)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, CodeForbidden, code(resp.Errors[0]))
		api.catalog.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("admin", func(t *testing.T) {
		api := newTestAPI()
		updated := camiseta()
		updated.Stock = 4
		api.catalog.On("UpdateStock", mock.Anything, "P1", 4).Return(nil)
		api.catalog.On("GetProductFresh", mock.Anything, "P1").Return(updated, nil)
		api.catalog.On("InvalidateAll").Return()

		_, resp := api.do(t, admin, `mutation { updateProductStock(productId: "P1", stock: 4) { stock } purgeCatalogCache }`, nil)

		assert.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"stock":4}`, string(resp.Data["updateProductStock"]))
		assert.JSONEq(t, `true`, string(resp.Data["purgeCatalogCache"]))
	})

	t.Run("user level field", func(t *testing.T) {
		api := newTestAPI()
		api.carts.On("MergeSessionIntoUser", mock.Anything, "sess-1", uint(2)).Return(nil)
		api.carts.On("GetCart", mock.Anything, cart.ForUser(2)).Return(&cart.Cart{ID: "c2"}, nil)

		ctx := utils.SetSessionContext(customer, "sess-1")
		_, resp := api.do(t, ctx, `mutation { mergeCart { id } }`, nil)

		assert.Empty(t, resp.Errors)
		assert.JSONEq(t, `{"id":"c2"}`, string(resp.Data["mergeCart"]))
	})
}

func TestExec_StrictFieldsLimitCheckout(t *testing.T) {
	api := newTestAPI(middleware.NewRateLimiter().Strict("checkout", "createCharge"))
	api.orders.On("Checkout", mock.Anything, mock.Anything).Return(&order.CheckoutResult{
		OrderID: "o1",
		Total:   decimal.RequireFromString("10"),
	}, nil)
	api.carts.On("GetCart", mock.Anything, mock.Anything).Return(&cart.Cart{ID: "c1"}, nil)

	const attempts = 10
	limited := 0
	for i := 0; i < attempts; i++ {
		_, resp := api.do(t, sessionCtx("sess-1"), `mutation { checkout(input: {}) { orderId } }`, nil)
		for _, e := range resp.Errors {
			if code(e) == CodeRateLimited {
				limited++
			}
		}
	}

	assert.Positive(t, limited)
	checkouts := 0
	for _, c := range api.orders.Calls {
		if c.Method == "Checkout" {
			checkouts++
		}
	}
	assert.Equal(t, attempts-limited, checkouts)

	// reads are not part of the strict budget
	_, resp := api.do(t, sessionCtx("sess-1"), `{ cart { id } }`, nil)
	assert.Empty(t, resp.Errors)
}

func TestErrorPresenter_Codes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{apperr.ErrAlreadyCharged, CodeAlreadyCharged},
		{apperr.ErrChargeRefused, CodeChargeRefused},
		{fmt.Errorf("%w: %w", order.ErrOrderNotAwaitingCharge, apperr.NewValidationError("order is not awaiting payment", "order_id")), CodeConflict},
		{apperr.NotFound("order", "o1"), CodeNotFound},
		{middleware.ErrNoCartIdentity, CodeUnauthenticated},
		{middleware.ErrRateLimited, CodeRateLimited},
		{errForbidden, CodeForbidden},
		{cart.ErrInvalidIdentity, CodeBadUserInput},
		{cart.ErrInvalidQuantity, CodeValidationFailed},
		{cart.ErrProductInactive, CodeConflict},
		{cart.ErrCartItemNotFound, CodeNotFound},
		{&inputError{arg: "stock", err: fmt.Errorf("overflow")}, CodeBadUserInput},
		{apperr.Storage("get product", fmt.Errorf("conn reset")), CodeInternal},
		{fmt.Errorf("unexpected"), CodeInternal},
	}
	for _, tt := range tests {
		got := ErrorPresenter(context.Background(), tt.err)
		assert.Equal(t, tt.code, got.Extensions["code"], "%v", tt.err)
	}
}
