package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func ConnectDB(logger *zap.Logger) (*pgxpool.Pool, error) {
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	var dbpool *pgxpool.Pool
	var err error

	maxRetries := 5
	delay := 2 * time.Second

	for i := 1; i <= maxRetries; i++ {
		logger.Info("connecting to database", zap.Int("attempt", i), zap.Int("max", maxRetries))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		cfg, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			cancel()
			return nil, fmt.Errorf("failed to parse db config: %w", parseErr)
		}

		// tuning pool settings
		cfg.MaxConns = 50
		cfg.MinConns = 10
		cfg.MaxConnLifetime = time.Hour
		cfg.MaxConnIdleTime = 5 * time.Minute

		dbpool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if pingErr := dbpool.Ping(ctx); pingErr == nil {
				cancel()
				logger.Info("database connected")
				return dbpool, nil
			} else {
				err = fmt.Errorf("ping failed: %w", pingErr)
			}
		}
		cancel()

		logger.Warn("database connection failed", zap.Error(err))

		if i < maxRetries {
			time.Sleep(delay)
			delay *= 2 // exponential backoff
		}
	}

	return nil, fmt.Errorf("failed to connect to DB after %d attempts: %w", maxRetries, err)
}
