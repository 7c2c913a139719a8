package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	libdb "evorchestrator/backend/libs/db"
	"evorchestrator/backend/services/orchestrator/internal/config"
)

// NewPostgres opens the orchestrator database with the configured pool limits.
func NewPostgres(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	return libdb.Open(ctx, cfg.Database.DSN, libdb.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}
