package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seiji-watch/diet-tracker/internal/config"
	"github.com/seiji-watch/diet-tracker/internal/log"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

// initLogger builds the process logger. DIET_DEBUG enables debug level,
// DIET_LOG_JSON switches to JSON output for log collectors.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DIET_DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("DIET_LOG_JSON") != "" {
		cfg.JSON = true
	}
	logger := log.New(cfg)
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads configuration. Each command validates the slice of
// it that the command actually uses.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// connect opens the pgx pool for one command run.
func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := store.Connect(ctx, cfg.PostgresConnString())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, nil
}
