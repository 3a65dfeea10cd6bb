package main

import (
	"os"

	"github.com/spf13/cobra"

	coreconfig "github.com/m3rciful/menubot/core/config"
	corecmd "github.com/m3rciful/menubot/core/cmd"
	"github.com/m3rciful/menubot/core/logger"
)

const defaultConfigPath = "config.yaml"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "menubot",
	Short: "menubot is a Telegram menu bot that keeps the chat tidy",
	Long: `menubot serves a Telegram bot with inline-button menus. Every new screen
replaces the previous one, so the chat shows at most a few bot messages.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"path to the YAML config (default $"+corecmd.DefaultConfigEnvVar+" or "+defaultConfigPath+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(webhookCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config and starts the logger for one-shot commands.
func loadConfig() (*coreconfig.Config, func(), error) {
	cfg, err := corecmd.LoadConfig(corecmd.Options{
		ConfigPath:        configFile,
		DefaultConfigPath: defaultConfigPath,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, func() { _ = logger.Shutdown() }, nil
}
