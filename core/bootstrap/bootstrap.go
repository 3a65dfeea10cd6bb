// Package bootstrap initializes logging and the session store backend.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/menubot/core/config"
	coredatabase "github.com/m3rciful/menubot/core/database"
	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/session"
)

// Options control the bootstrap pipeline. Nil funcs use the package defaults.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(coreconfig.DatabaseConfig) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil for the memory backend.
	DB    *sqlx.DB
	Store session.Store
}

// Close releases the database pool, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and opens the configured session store. The
// postgres backend connects and applies migrations first.
func Run(opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if cfg.Session.Backend != coreconfig.SessionPostgres {
		logger.TWire.Info("session store ready",
			slog.String("event", "session.store"),
			slog.String("backend", coreconfig.SessionMemory),
			slog.Int("capacity", cfg.Session.Capacity),
		)
		return &Result{Store: session.NewMemoryStore(cfg.Session.Capacity)}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	logger.TWire.Info("session store ready",
		slog.String("event", "session.store"),
		slog.String("backend", coreconfig.SessionPostgres),
		slog.Int("capacity", cfg.Session.Capacity),
	)
	return &Result{DB: db, Store: session.NewPostgresStore(db, cfg.Session.Capacity)}, nil
}
