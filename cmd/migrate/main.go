package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sean-rowe/cwa-weather-proxy/internal/config"
	"github.com/sean-rowe/cwa-weather-proxy/internal/infrastructure/database"
)

func main() {
	var (
		action  = flag.String("action", "up", "Migration action: up, down, version, force")
		version = flag.Uint("version", 0, "Target version for version or force")
	)

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("Failed to ping database",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
			zap.Error(err))
	}

	switch *action {
	case "up":
		err = database.RunMigrations(db, logger)
	case "down":
		err = database.MigrateDown(db, logger)
	case "version":
		if *version == 0 {
			logger.Fatal("Version must be specified with -version flag")
		}

		err = database.MigrateToVersion(db, *version, logger)
	case "force":
		if *version == 0 {
			logger.Fatal("Version must be specified with -version flag")
		}

		err = database.ForceVersion(db, *version, logger)
	default:
		logger.Fatal("Invalid action", zap.String("action", *action))
	}

	if err != nil {
		logger.Fatal("Migration failed", zap.String("action", *action), zap.Error(err))
	}

	logger.Info("Migration finished", zap.String("action", *action))
}
