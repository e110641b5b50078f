// Package httpapi mounts the GraphQL storefront API, the payment webhook
// and the health check on one mux.
package httpapi

import (
	"context"
	"net/http"

	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"github.com/99designs/gqlgen/graphql/playground"
	"go.uber.org/zap"
)

type Deps struct {
	// GraphQL serves carts, checkout, orders, charges and catalog admin.
	GraphQL http.Handler
	Webhook http.HandlerFunc
	// Playground mounts the GraphQL playground at /playground.
	Playground bool

	// Ping checks the database for /health. Optional.
	Ping func(ctx context.Context) error
	// Stats adds reconciliation counters to /health. Optional.
	Stats func() map[string]uint64
}

type Handler struct {
	ping  func(ctx context.Context) error
	stats func() map[string]uint64
}

// NewRouter registers every route. Middlewares are applied by the caller.
func NewRouter(d Deps) http.Handler {
	h := &Handler{ping: d.Ping, stats: d.Stats}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)

	if d.GraphQL != nil {
		mux.Handle("/query", d.GraphQL)
	}
	if d.Playground {
		mux.Handle("GET /playground", playground.Handler("Storefront GraphQL", "/query"))
	}

	// the webhook handler answers 405 itself for other methods
	if d.Webhook != nil {
		mux.HandleFunc("/webhooks/payment", d.Webhook)
	}
	return mux
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "OK"}
	code := http.StatusOK

	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			logger.FromCtx(r.Context()).Error("health check failed", zap.Error(err))
			resp["status"] = "DEGRADED"
			code = http.StatusServiceUnavailable
		}
	}
	if h.stats != nil {
		resp["reconciliation"] = h.stats()
	}
	utils.WriteJSON(w, code, resp)
}
