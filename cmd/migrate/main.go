package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "revert the most recent migration")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.New("migrate", cfg.LogLevel, cfg.LogFile)

	dir := migrate.Up
	if *down {
		dir = migrate.Down
	}
	if err := migrate.Apply(context.Background(), cfg.DBConnString, dir, logger); err != nil {
		logger.Error("apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
