package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-be/internal/apperr"
	"storefront-be/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, n *notification.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockStore) MarkProcessed(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListUnprocessed(ctx context.Context, limit int) ([]notification.Notification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notification.Notification), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, n *notification.Notification, ev notification.Event) error {
	return m.Called(ctx, n, ev).Error(0)
}

const paidBody = `{"id":"tx_1","type":"order.paid","data":{"status":"paid"}}`

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString(body))
}

func TestHandler_PaymentWebhookHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{})

		var saved *notification.Notification
		store.On("Save", mock.Anything, mock.AnythingOfType("*notification.Notification")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*notification.Notification) }).
			Return(nil)
		rec.On("Reconcile", mock.Anything, mock.Anything, mock.MatchedBy(func(ev notification.Event) bool {
			return ev.Kind == notification.KindOrder && ev.Reference == "tx_1" && ev.Status == "paid"
		})).Return(nil)

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, post(paidBody))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true}`, w.Body.String())

		require.NotNil(t, saved)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "tx_1", saved.TransactionID)
		assert.Equal(t, "order.paid", saved.EventType)
		assert.Equal(t, "paid", saved.CurrentStatus)
		assert.Equal(t, []byte(paidBody), saved.RawData)
		store.AssertExpectations(t)
		rec.AssertExpectations(t)
	})

	t.Run("MalformedBodyIsStoredAndAcknowledged", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{})

		store.On("Save", mock.Anything, mock.MatchedBy(func(n *notification.Notification) bool {
			return string(n.RawData) == "{broken" && n.TransactionID == ""
		})).Return(nil)
		rec.On("Reconcile", mock.Anything, mock.Anything, mock.MatchedBy(func(ev notification.Event) bool {
			return ev.Kind == notification.KindMalformed
		})).Return(nil)

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, post("{broken"))

		assert.Equal(t, http.StatusOK, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("NULInDerivedFieldsIsStripped", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{})

		body := `{"id":"tx_\u00001","type":"order.paid","data":{"status":"pa\u0000id"}}`
		var saved *notification.Notification
		store.On("Save", mock.Anything, mock.AnythingOfType("*notification.Notification")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*notification.Notification) }).
			Return(nil)
		rec.On("Reconcile", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, post(body))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, saved)
		assert.Equal(t, "tx_1", saved.TransactionID)
		assert.Equal(t, "paid", saved.CurrentStatus)
		assert.NotContains(t, saved.EventType, "\x00")
		assert.Equal(t, []byte(body), saved.RawData)
	})

	t.Run("StorageFailureAsksForRetry", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{})

		store.On("Save", mock.Anything, mock.Anything).Return(apperr.Storage("save notification", errors.New("db down")))

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, post(paidBody))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ReconcileStorageFailure", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{})

		store.On("Save", mock.Anything, mock.Anything).Return(nil)
		rec.On("Reconcile", mock.Anything, mock.Anything, mock.Anything).
			Return(apperr.Storage("apply payment update", errors.New("db down")))

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, post(paidBody))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("ReconcileFailureAcknowledgedWhenConfigured", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{AckOnProcessingError: true})

		store.On("Save", mock.Anything, mock.Anything).Return(nil)
		rec.On("Reconcile", mock.Anything, mock.Anything, mock.Anything).
			Return(apperr.Storage("apply payment update", errors.New("db down")))

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, post(paidBody))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{})

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, httptest.NewRequest(http.MethodGet, "/webhooks/payment", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		store, rec := new(MockStore), new(MockReconciler)
		h := NewWebhookHandler(store, rec, Options{})

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, post(strings.Repeat("a", MaxBodyBytes+1)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestHandler_VerifySignature(t *testing.T) {
	store, rec := new(MockStore), new(MockReconciler)

	t.Run("SkipWhenUnconfigured", func(t *testing.T) {
		h := NewWebhookHandler(store, rec, Options{})
		assert.NoError(t, h.VerifySignature(post(paidBody)))
	})

	t.Run("HeaderToken", func(t *testing.T) {
		h := NewWebhookHandler(store, rec, Options{Token: "secret-token"})
		req := post(paidBody)
		req.Header.Set("X-Webhook-Token", "secret-token")
		assert.NoError(t, h.VerifySignature(req))
	})

	t.Run("BasicAuthUser", func(t *testing.T) {
		h := NewWebhookHandler(store, rec, Options{Token: "secret-token"})
		req := post(paidBody)
		req.SetBasicAuth("secret-token", "")
		assert.NoError(t, h.VerifySignature(req))
	})

	t.Run("WrongToken", func(t *testing.T) {
		h := NewWebhookHandler(store, rec, Options{Token: "secret-token"})
		req := post(paidBody)
		req.Header.Set("X-Webhook-Token", "nope")
		assert.ErrorIs(t, h.VerifySignature(req), ErrInvalidToken)

		w := httptest.NewRecorder()
		h.PaymentWebhookHandler(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "invalid token", body["error"])
	})
}
