package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/contentory/ingest/internal/config"
	"github.com/contentory/ingest/internal/db"
	"github.com/contentory/ingest/internal/logger"
)

func runMigrate() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	if err := db.Migrate(cfg.Postgres); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.L.Info("migrations applied", slog.String("database", cfg.Postgres.Database))
	return nil
}
