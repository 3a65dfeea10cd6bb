package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/logger"
)

// DSN renders the lib/pq keyword connection string.
func DSN(cfg coreconfig.DatabaseConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// URL renders the postgres:// form expected by golang-migrate.
func URL(cfg coreconfig.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

// Connect opens the database connection, configures the pool, and verifies connectivity.
func Connect(cfg coreconfig.DatabaseConfig) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	sqlxDB, err := sqlx.ConnectContext(ctx, "postgres", DSN(cfg))
	took := time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.String("db", cfg.Name),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if pingErr := sqlxDB.PingContext(ctx); pingErr != nil {
		logger.DB.Error("db ping failed",
			slog.String("event", "db.ping"),
			slog.String("host", cfg.Host),
			slog.String("db", cfg.Name),
			slog.String("err", pingErr.Error()),
		)
		_ = sqlxDB.Close()
		return nil, fmt.Errorf("db ping: %w", pingErr)
	}

	sqlxDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlxDB.SetMaxIdleConns(cfg.MaxConnections)

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return sqlxDB, nil
}

// WaitForPostgres tries to connect to the DB until it is ready or timeout is reached.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				_ = db.Close()
				return nil
			}
			_ = db.Close()
		}
		lastErr = err
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
