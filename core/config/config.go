package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Bot API credentials and transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	APIURL  string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// CallTimeoutMS bounds every outbound Bot API call.
	CallTimeoutMS int `yaml:"call_timeout_ms" envconfig:"TELEGRAM_CALL_TIMEOUT_MS"`
	// PublishCommands pushes the command list via setMyCommands on start.
	PublishCommands bool `yaml:"publish_commands" envconfig:"TELEGRAM_PUBLISH_COMMANDS"`
}

// WebhookConfig specifies the inbound webhook listener.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	Path   string `yaml:"path" envconfig:"WEBHOOK_PATH"`
	// Secret is compared against SecretHeader on every POST. Empty disables verification.
	Secret       string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
	SecretHeader string `yaml:"secret_header" envconfig:"WEBHOOK_SECRET_HEADER"`
	// Register calls setWebhook with URL and Secret on start.
	Register         bool `yaml:"register" envconfig:"WEBHOOK_REGISTER"`
	HandlerTimeoutMS int  `yaml:"handler_timeout_ms" envconfig:"WEBHOOK_HANDLER_TIMEOUT_MS"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Backend  string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	Capacity int    `yaml:"capacity" envconfig:"SESSION_CAPACITY"`
}

// LifecycleConfig tunes the message lifecycle coordinator.
type LifecycleConfig struct {
	// DeleteDelayMS is the pause between deletes of one batch; negative disables it.
	DeleteDelayMS int    `yaml:"delete_delay_ms" envconfig:"LIFECYCLE_DELETE_DELAY_MS"`
	ClearPolicy   string `yaml:"clear_policy" envconfig:"LIFECYCLE_CLEAR_POLICY"`
	// ChatInfo enables a diagnostic getChat lookup per event.
	ChatInfo bool `yaml:"chat_info" envconfig:"LIFECYCLE_CHAT_INFO"`
}

// SenderConfig sizes the fire-and-forget worker pool.
type SenderConfig struct {
	QueueSize     int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers       int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxDurationMS int `yaml:"max_duration_ms" envconfig:"SENDER_MAX_DURATION_MS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Rotation settings for the file sink, see lumberjack.Logger.
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// DatabaseConfig holds postgres connection settings for the shared session store.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

const (
	// RunModeWebhook serves updates from the built-in HTTP listener.
	RunModeWebhook = "webhook"
	// RunModeLongpoll pulls updates with getUpdates; meant for local development.
	RunModeLongpoll = "longpoll"
)

const (
	// SessionMemory keeps sessions in process memory.
	SessionMemory = "memory"
	// SessionPostgres keeps sessions in postgres, shared between instances.
	SessionPostgres = "postgres"
)

const (
	// ClearTrack makes the clean confirmation the sole tracked message.
	ClearTrack = "track"
	// ClearEmpty leaves the tracked set empty after a clean.
	ClearEmpty = "empty"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	DefaultSessionCapacity  = 10
	DefaultDeleteDelayMS    = 50
	DefaultCallTimeoutMS    = 10000
	DefaultHandlerTimeoutMS = 25000
	DefaultWebhookPath      = "/"
	DefaultSecretHeader     = "X-Telegram-Bot-Api-Secret-Token"
)

// RateLimitConfig holds settings for the inbound per-chat rate limit.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Session   SessionConfig   `yaml:"session"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Sender    SenderConfig    `yaml:"sender"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
}

// Load reads configuration from a YAML file and environment variables.
// A missing file is not an error when the environment carries the token.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.CallTimeoutMS <= 0 {
		cfg.Telegram.CallTimeoutMS = DefaultCallTimeoutMS
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeWebhook
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			cfg.Webhook.Listen = "0.0.0.0"
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Register && strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when webhook.register is set")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	path := strings.TrimSpace(cfg.Webhook.Path)
	if path == "" {
		path = DefaultWebhookPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	cfg.Webhook.Path = path
	if strings.TrimSpace(cfg.Webhook.SecretHeader) == "" {
		cfg.Webhook.SecretHeader = DefaultSecretHeader
	}
	if cfg.Webhook.HandlerTimeoutMS <= 0 {
		cfg.Webhook.HandlerTimeoutMS = DefaultHandlerTimeoutMS
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	switch backend {
	case "":
		backend = SessionMemory
	case SessionMemory:
	case SessionPostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required for session.backend 'postgres'")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, postgres", cfg.Session.Backend)
	}
	cfg.Session.Backend = backend
	if cfg.Session.Capacity <= 0 {
		cfg.Session.Capacity = DefaultSessionCapacity
	}

	if cfg.Lifecycle.DeleteDelayMS == 0 {
		cfg.Lifecycle.DeleteDelayMS = DefaultDeleteDelayMS
	}
	policy := strings.ToLower(strings.TrimSpace(cfg.Lifecycle.ClearPolicy))
	switch policy {
	case "":
		policy = ClearTrack
	case ClearTrack, ClearEmpty:
	default:
		return fmt.Errorf("invalid lifecycle.clear_policy %q; allowed: track, empty", cfg.Lifecycle.ClearPolicy)
	}
	cfg.Lifecycle.ClearPolicy = policy

	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// SecretConfigured reports whether inbound webhook verification is enabled.
func (c *Config) SecretConfigured() bool {
	return c != nil && strings.TrimSpace(c.Webhook.Secret) != ""
}
