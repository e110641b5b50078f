package main

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-be/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppPort:           "8080",
		AppEnv:            "test",
		PagarmeBaseURL:    "http://127.0.0.1:1",
		GatewayTimeout:    time.Second,
		WebhookToken:      "hook-secret",
		JWTSecret:         "jwt-secret",
		CORSAllowedOrigin: "http://localhost:3000",
		CatalogCacheSize:  16,
	}
}

func TestNewServer(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	srv, err := newServer(testConfig(), db)
	require.NoError(t, err)
	require.NotNil(t, srv.handler)
	defer srv.Close()

	t.Run("Health Check", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "OK")
		assert.Contains(t, rr.Body.String(), "reconciliation")
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Webhook requires token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Webhook rejects GET", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/payment", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("Cart needs an identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"{ cart { id } }"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"code":"UNAUTHENTICATED"`)
		assert.Contains(t, rr.Body.String(), `"cart":null`)
	})

	t.Run("Playground outside production", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/playground", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Admin mutation needs the admin role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"mutation { purgeCatalogCache }"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Session-ID", "sess-1")
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"code":"UNAUTHENTICATED"`)
	})

	t.Run("Engine counters start at zero", func(t *testing.T) {
		assert.Zero(t, srv.engine.Metrics().Received.Load())
	})
}

func setRunEnv(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "user")
	t.Setenv("DB_PASSWORD", "pass")
	t.Setenv("DB_NAME", "db")
	t.Setenv("KAFKA_BROKERS", "")
}

func TestRun(t *testing.T) {
	origInitDB := initDBFunc
	origStartServer := startServerFunc
	defer func() {
		initDBFunc = origInitDB
		startServerFunc = origStartServer
	}()

	initDBFunc = func(cfg *config.Config) (*sql.DB, error) {
		db, _, err := sqlmock.New()
		return db, err
	}

	t.Run("server stops cleanly", func(t *testing.T) {
		setRunEnv(t)
		var addr string
		startServerFunc = func(srv *http.Server) error {
			addr = srv.Addr
			return http.ErrServerClosed
		}

		assert.NoError(t, run())
		assert.Equal(t, ":8080", addr)
	})

	t.Run("listen failure", func(t *testing.T) {
		setRunEnv(t)
		startServerFunc = func(srv *http.Server) error {
			return errors.New("address already in use")
		}

		assert.EqualError(t, run(), "address already in use")
	})

	t.Run("database failure", func(t *testing.T) {
		setRunEnv(t)
		initDBFunc = func(cfg *config.Config) (*sql.DB, error) {
			return nil, errors.New("failed to ping DB")
		}

		assert.Error(t, run())
	})
}
