package main

import (
	"context"
	"log/slog"
	"os"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	"storefront/internal/seed"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.New("seed", cfg.LogLevel, cfg.LogFile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Error("connect db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := seed.Apply(ctx, pool, logger); err != nil {
		logger.Error("seed apply", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("seed applied",
		slog.String("seller_id", seed.DemoSellerID),
		slog.String("buyer_id", seed.DemoBuyerID),
		slog.String("address_id", seed.DemoAddressID),
	)
}
