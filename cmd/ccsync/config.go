package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccsync/ccsync/internal/config"
	"github.com/ccsync/ccsync/internal/formatter"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View ccsync configuration.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (CCSYNC_*)
  3. Project config (.ccsync/config.yaml)
  4. Home config (~/.ccsync/config.yaml)
  5. Defaults

A .env file in the working directory is loaded into the environment first.

Environment variables:
  CCSYNC_CONFIG             - Explicit config file path (replaces the project config)
  CCSYNC_OUTPUT             - Default output format (table, json, yaml)
  CCSYNC_VERBOSE            - Enable debug logging (true/1)
  CCSYNC_SOURCE_DIR         - Directory backed up (default ~/.claude)
  CCSYNC_DEST_DIR           - Sync directory (default ./claude)
  CCSYNC_ITEMS              - Comma-separated items to back up
  CCSYNC_EXCLUDE            - Comma-separated exclude globs
  CCSYNC_WORKERS            - Concurrent file copies
  CCSYNC_COMMIT             - Commit after each backup (true/1)
  CCSYNC_HANDOFF_THRESHOLD  - Whole usage percent to exceed (default 70)
  CCSYNC_HANDOFF_LOG        - Handoff log file
  CCSYNC_HANDOFF_MARKER_DIR - Pending marker directory`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration with sources",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	resolved, err := config.Resolve(flagOverrides())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	format := getOutput()
	if format != formatter.FormatTable {
		return formatter.WriteStructured(w, format, resolved)
	}

	tbl := formatter.NewTable(w, "KEY", "VALUE", "SOURCE")
	tbl.SetMaxWidth(1, 60)
	for _, r := range resolved {
		tbl.AddRow(r.Key, r.Value, string(r.Source))
	}
	if err := tbl.Render(); err != nil {
		return err
	}

	if v := os.Getenv("CCSYNC_CONFIG"); v != "" {
		fmt.Fprintf(w, "\nProject config override: %s\n", v)
	}
	return nil
}
