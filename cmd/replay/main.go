// Command replay reconciles stored webhook notifications that were never
// marked processed, for example after the database was briefly unavailable.
package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/events"
	"storefront-be/internal/logger"
	"storefront-be/internal/notification"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/reconcile"

	"go.uber.org/zap"
)

func main() {
	limit := flag.Int("limit", 500, "maximum notifications to replay")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L().Fatal("failed to load config", zap.Error(err))
	}
	logger.Init(cfg.AppEnv)
	defer func() { _ = logger.L().Sync() }()

	conn, err := db.NewDatabase(cfg)
	if err != nil {
		logger.L().Fatal("failed to connect db", zap.Error(err))
	}
	defer conn.Close()

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := replay(ctx, conn, publisher, *limit); err != nil {
		logger.L().Fatal("replay failed", zap.Error(err))
	}
}

func replay(ctx context.Context, conn *sql.DB, publisher events.Publisher, limit int) (int, error) {
	engine := reconcile.NewEngine(
		order.NewRepository(conn),
		payment.NewRepository(conn),
		notification.NewRepository(conn),
		reconcile.WithPublisher(publisher),
	)

	done, err := engine.ReplayUnprocessed(ctx, limit)
	logger.L().Info("replay finished",
		zap.Int("replayed", done),
		zap.Any("counters", engine.Metrics().Snapshot()),
	)
	return done, err
}
