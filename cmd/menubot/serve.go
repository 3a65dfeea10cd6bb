package main

import (
	"github.com/spf13/cobra"

	"github.com/m3rciful/menubot/core/buildinfo"
	corecmd "github.com/m3rciful/menubot/core/cmd"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	Long:  "Run the bot in the configured mode: webhook listener or long polling",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return corecmd.Run(cmd.Context(), corecmd.Options{
			ConfigPath:        configFile,
			DefaultConfigPath: defaultConfigPath,
			Version:           buildinfo.Version,
		})
	},
}
