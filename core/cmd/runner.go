// Package cmd runs the bot process: config, bootstrap, transport.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/menubot/core/bootstrap"
	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/logger"
	coretelegram "github.com/m3rciful/menubot/core/telegram"
	"github.com/m3rciful/menubot/core/telegram/session"
)

// DefaultConfigEnvVar names the environment variable holding the config path.
const DefaultConfigEnvVar = "CONFIG_PATH"

// Options describe how to load configuration, bootstrap the app, and run the bot.
// Nil funcs use the package defaults.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string
	Version           string

	LoadConfig     func(path string) (*coreconfig.Config, error)
	Bootstrap      func(cfg *coreconfig.Config) (*bootstrap.Result, error)
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// ResolveConfigPath picks the explicit path, then the env var, then the default.
func ResolveConfigPath(explicit, envVar, def string) string {
	if explicit != "" {
		return explicit
	}
	if envVar == "" {
		envVar = DefaultConfigEnvVar
	}
	if p := os.Getenv(envVar); p != "" {
		return p
	}
	return def
}

// LoadConfig resolves the config path from opts and loads it.
func LoadConfig(opts Options) (*coreconfig.Config, error) {
	cfgPath := ResolveConfigPath(opts.ConfigPath, opts.ConfigEnvVar, opts.DefaultConfigPath)
	if cfgPath == "" {
		return nil, errors.New("cmd: config path not provided")
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}
	log.Printf("loading config: %s", cfgPath)
	cfg, err := load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	return cfg, nil
}

// Run loads configuration, bootstraps the app, and serves until SIGINT or SIGTERM.
func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	boot := opts.Bootstrap
	if boot == nil {
		boot = func(cfg *coreconfig.Config) (*bootstrap.Result, error) {
			return bootstrap.Run(bootstrap.Options{Config: cfg})
		}
	}
	res, err := boot(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	startedAt := time.Now()
	runOpts := coretelegram.RunOptions{
		Config:  cfg,
		Store:   res.Store,
		Version: opts.Version,
		OnStart: func(context.Context, coretelegram.Runtime) error {
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.String("mode", cfg.Telegram.RunMode),
				slog.String("session", sessionBackend(res.Store)),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			return nil
		},
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func sessionBackend(s session.Store) string {
	if _, ok := s.(*session.PostgresStore); ok {
		return coreconfig.SessionPostgres
	}
	return coreconfig.SessionMemory
}
