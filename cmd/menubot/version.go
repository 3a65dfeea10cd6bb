package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/menubot/core/buildinfo"
)

var versionJSON bool

// VersionOutput represents the version output structure
type VersionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := VersionOutput{Version: buildinfo.Version, Commit: buildinfo.Commit, Date: buildinfo.Date}
		out := cmd.OutOrStdout()
		if versionJSON {
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintln(out, "menubot version information:")
		fmt.Fprintf(out, "  Version: %s\n", v.Version)
		fmt.Fprintf(out, "  Commit:  %s\n", v.Commit)
		fmt.Fprintf(out, "  Date:    %s\n", v.Date)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output in JSON format")
}
