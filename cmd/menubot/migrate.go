package main

import (
	"fmt"

	"github.com/spf13/cobra"

	coredatabase "github.com/m3rciful/menubot/core/database"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the session store schema",
	Long:      "Apply (up, the default) or roll back (down) the postgres migrations used by session.backend: postgres",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(coredatabase.Up), string(coredatabase.Down)},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := coredatabase.Up
		if len(args) == 1 {
			dir = coredatabase.Direction(args[0])
		}
		cfg, done, err := loadConfig()
		if err != nil {
			return err
		}
		defer done()
		if err := coredatabase.Migrate(cmd.Context(), cfg.Database, dir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", dir)
		return nil
	},
}
