package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Webhook:  WebhookConfig{Port: 8080, Path: "hook"},
	}
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
	assert.Equal(t, "/hook", cfg.Webhook.Path)
	assert.Equal(t, "0.0.0.0", cfg.Webhook.Listen)
	assert.Equal(t, DefaultSecretHeader, cfg.Webhook.SecretHeader)
	assert.Equal(t, SessionMemory, cfg.Session.Backend)
	assert.Equal(t, DefaultSessionCapacity, cfg.Session.Capacity)
	assert.Equal(t, DefaultDeleteDelayMS, cfg.Lifecycle.DeleteDelayMS)
	assert.Equal(t, ClearTrack, cfg.Lifecycle.ClearPolicy)
	assert.Equal(t, DefaultCallTimeoutMS, cfg.Telegram.CallTimeoutMS)
	assert.False(t, cfg.SecretConfigured())
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing token", cfg: Config{Webhook: WebhookConfig{Port: 1}}},
		{name: "webhook without port", cfg: Config{Telegram: TelegramConfig{Token: "t"}}},
		{name: "bad run mode", cfg: Config{Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}}},
		{name: "register without url", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Webhook: WebhookConfig{Port: 1, Register: true}}},
		{name: "bad backend", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Webhook: WebhookConfig{Port: 1}, Session: SessionConfig{Backend: "redis"}}},
		{name: "postgres without host", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Webhook: WebhookConfig{Port: 1}, Session: SessionConfig{Backend: "postgres"}}},
		{name: "bad clear policy", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Webhook: WebhookConfig{Port: 1}, Lifecycle: LifecycleConfig{ClearPolicy: "sometimes"}}},
		{name: "bad rate limit exclusion", cfg: Config{Telegram: TelegramConfig{Token: "t"}, Webhook: WebhookConfig{Port: 1}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"inline_query"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.Error(t, Normalize(&cfg))
		})
	}
}

func TestNormalizeLongpollAlias(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
telegram:
  token: from-file
webhook:
  port: 9000
  secret: file-secret
lifecycle:
  clear_policy: empty
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("SESSION_CAPACITY", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 9000, cfg.Webhook.Port)
	assert.Equal(t, 5, cfg.Session.Capacity)
	assert.Equal(t, ClearEmpty, cfg.Lifecycle.ClearPolicy)
	assert.True(t, cfg.SecretConfigured())
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-only")
	t.Setenv("WEBHOOK_PORT", "8081")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Telegram.Token)
	assert.Equal(t, 8081, cfg.Webhook.Port)
}
