package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"evorchestrator/backend/libs/logging"
	"evorchestrator/backend/services/orchestrator/internal/config"
	"evorchestrator/backend/services/orchestrator/internal/db"
	"evorchestrator/backend/services/orchestrator/internal/repository"
	"evorchestrator/backend/services/orchestrator/internal/seed"
)

func main() {
	force := flag.Bool("force", false, "seed even when stations already exist")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger("orchestrator-seed")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	database, err := db.NewPostgres(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database, logger); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	seeder := seed.NewSeeder(
		repository.NewStationRepository(database),
		repository.NewUtilizationRepository(database),
		nil,
		cfg.Location(),
		logger,
	)
	samples, err := seeder.Run(ctx, time.Now(), *force)
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("database seeded", zap.Int("utilization_samples", samples))
}
