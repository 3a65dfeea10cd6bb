package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/telegram/session"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunMemoryBackendSkipsDatabase(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Session.Backend = coreconfig.SessionMemory
	cfg.Session.Capacity = 3

	res, err := Run(Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			t.Fatal("connect must not be called")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.IsType(t, &session.MemoryStore{}, res.Store)
	assert.NoError(t, res.Close())
}

func TestRunPostgresBackend(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Session.Backend = coreconfig.SessionPostgres

	var migrated bool
	res, err := Run(Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			return sqlx.Open("postgres", "host=127.0.0.1 port=1 dbname=none sslmode=disable")
		},
		Migrate: func(coreconfig.DatabaseConfig) error {
			migrated = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.IsType(t, &session.PostgresStore{}, res.Store)
	assert.NoError(t, res.Close())
}

func TestRunFailures(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)

	cfg := &coreconfig.Config{}
	_, err = Run(Options{Config: cfg, LoggerInit: func(*coreconfig.Config) error { return errors.New("no log dir") }})
	assert.ErrorContains(t, err, "logger init")

	cfg.Session.Backend = coreconfig.SessionPostgres
	_, err = Run(Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			return nil, errors.New("refused")
		},
	})
	assert.ErrorContains(t, err, "database initialization")

	_, err = Run(Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			return sqlx.Open("postgres", "host=127.0.0.1 port=1 dbname=none sslmode=disable")
		},
		Migrate: func(coreconfig.DatabaseConfig) error { return errors.New("dirty") },
	})
	assert.ErrorContains(t, err, "migrations failed")
}
