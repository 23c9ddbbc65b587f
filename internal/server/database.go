package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// ConnectDB opens the configured store, pings it and applies pending
// migrations.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repo.Open(ctx, repo.Config{
		Driver:           repo.Dialect(cfg.Driver),
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.Driver, "error", err)
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("successfully connected to database", "driver", cfg.Driver)
	return db, nil
}
