package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/graph"
	"storefront-be/internal/httpapi"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
	"storefront-be/internal/notification"
	"storefront-be/internal/notification/webhook"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/reconcile"

	"go.uber.org/zap"
)

// Overridable in tests.
var (
	initDBFunc      = db.NewDatabase
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

const shutdownTimeout = 10 * time.Second

type server struct {
	handler   http.Handler
	limiter   *middleware.RateLimiter
	publisher events.Publisher
	engine    *reconcile.Engine
}

func (s *server) Close() error {
	return s.publisher.Close()
}

// newServer wires repositories, services and the HTTP stack.
func newServer(cfg *config.Config, database *sql.DB) (*server, error) {
	productCache, err := catalog.NewLRUCache[catalog.Product](cfg.CatalogCacheSize)
	if err != nil {
		return nil, err
	}
	categoryCache, err := catalog.NewLRUCache[catalog.Category](cfg.CatalogCacheSize)
	if err != nil {
		return nil, err
	}
	catalogSvc := catalog.NewService(catalog.NewRepository(database), productCache, categoryCache)

	cartSvc := cart.NewService(cart.NewRepository(database), catalogSvc)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, cartSvc, catalogSvc)

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)

	paymentRepo := payment.NewRepository(database)
	notificationRepo := notification.NewRepository(database)
	engine := reconcile.NewEngine(orderRepo, paymentRepo, notificationRepo,
		reconcile.WithPublisher(publisher),
	)

	gateway := payment.NewPagarmeGateway(cfg.PagarmeSecretKey, cfg.PagarmeBaseURL, cfg.GatewayTimeout)
	paymentSvc := payment.NewService(orderRepo, paymentRepo, gateway, engine)

	hook := webhook.NewWebhookHandler(notificationRepo, engine, webhook.Options{
		Token:                cfg.WebhookToken,
		AckOnProcessingError: cfg.WebhookAckOnProcessingError,
	})

	limiter := middleware.NewRateLimiter()

	resolver := &graph.Resolver{
		CartSvc:      cartSvc,
		OrderSvc:     orderSvc,
		PaymentSvc:   paymentSvc,
		CatalogSvc:   catalogSvc,
		Transactions: paymentRepo,
	}
	gql := graph.NewServer(graph.NewSchema(resolver), limiter.Strict("checkout", "createCharge"))

	router := httpapi.NewRouter(httpapi.Deps{
		GraphQL:    gql,
		Webhook:    hook.PaymentWebhookHandler,
		Playground: cfg.AppEnv != "production",
		Ping:       database.PingContext,
		Stats:      engine.Metrics().Snapshot,
	})

	handler := middleware.Chain(router,
		logger.RequestIDMiddleware,
		logger.LoggingMiddleware,
		middleware.CORS(cfg.CORSAllowedOrigin),
		middleware.IdentityMiddleware([]byte(cfg.JWTSecret)),
		limiter.Middleware,
	)

	return &server{
		handler:   handler,
		limiter:   limiter,
		publisher: publisher,
		engine:    engine,
	}, nil
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	log := logger.L()
	defer func() { _ = log.Sync() }()

	if cfg.PagarmeSecretKey == "" {
		log.Warn("PAGARME_SECRET_KEY is empty, charges will be rejected by the gateway")
	}
	if cfg.WebhookToken == "" {
		log.Warn("WEBHOOK_TOKEN is empty, webhook deliveries are not authenticated")
	}

	database, err := initDBFunc(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	srv, err := newServer(cfg, database)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.limiter.Run(ctx)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.GatewayTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", httpSrv.Addr), zap.String("env", cfg.AppEnv))
		errCh <- startServerFunc(httpSrv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}
