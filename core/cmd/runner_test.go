package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/menubot/core/bootstrap"
	coreconfig "github.com/m3rciful/menubot/core/config"
	coretelegram "github.com/m3rciful/menubot/core/telegram"
	"github.com/m3rciful/menubot/core/telegram/session"
)

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("MENUBOT_TEST_CONFIG", "/env.yaml")
	assert.Equal(t, "/flag.yaml", ResolveConfigPath("/flag.yaml", "MENUBOT_TEST_CONFIG", "/def.yaml"))
	assert.Equal(t, "/env.yaml", ResolveConfigPath("", "MENUBOT_TEST_CONFIG", "/def.yaml"))
	t.Setenv("MENUBOT_TEST_CONFIG", "")
	assert.Equal(t, "/def.yaml", ResolveConfigPath("", "MENUBOT_TEST_CONFIG", "/def.yaml"))
}

func TestRunWiresStoreAndVersion(t *testing.T) {
	store := session.NewMemoryStore(2)
	var got coretelegram.RunOptions
	var loggerClosed bool
	err := Run(t.Context(), Options{
		ConfigPath: "config.yaml",
		Version:    "v9",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			assert.Equal(t, "config.yaml", path)
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(*coreconfig.Config) (*bootstrap.Result, error) {
			return &bootstrap.Result{Store: store}, nil
		},
		ShutdownLogger: func() error {
			loggerClosed = true
			return nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			got = opts
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Same(t, store, got.Store)
	assert.Equal(t, "v9", got.Version)
	assert.True(t, loggerClosed)
}

func TestRunErrors(t *testing.T) {
	t.Setenv(DefaultConfigEnvVar, "")
	assert.Error(t, Run(t.Context(), Options{}))

	err := Run(t.Context(), Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(string) (*coreconfig.Config, error) { return nil, errors.New("missing") },
	})
	assert.ErrorContains(t, err, "failed to load config")

	err = Run(t.Context(), Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil },
		Bootstrap: func(*coreconfig.Config) (*bootstrap.Result, error) {
			return nil, errors.New("db down")
		},
	})
	assert.ErrorContains(t, err, "bootstrap failed")
}
