package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccsync/ccsync/internal/backup"
	"github.com/ccsync/ccsync/internal/config"
	"github.com/ccsync/ccsync/internal/formatter"
	"github.com/ccsync/ccsync/internal/handoff"
	"github.com/ccsync/ccsync/internal/settings"
)

var statusAll bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which files differ from the last backup",
	Long: `Compare every file a backup would copy against the sync directory
without writing anything, and report whether the handoff hook is installed
and how many handoffs are pending.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "List files that are already in sync too")
}

type statusReport struct {
	Files           []backup.Diff `json:"files" yaml:"files"`
	OutOfSync       int           `json:"out_of_sync" yaml:"out_of_sync"`
	HookInstalled   bool          `json:"hook_installed" yaml:"hook_installed"`
	PendingHandoffs int           `json:"pending_handoffs" yaml:"pending_handoffs"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	diffs, err := backup.Status(commandContext(cmd), backupOptions(c))
	if err != nil {
		return err
	}

	report := statusReport{Files: diffs, OutOfSync: len(backup.OutOfSync(diffs))}
	if ok, err := settings.Installed(settingsPath(c)); err == nil {
		report.HookInstalled = ok
	}
	if pending, err := handoff.PendingMarkers(c.Handoff.MarkerDir); err == nil {
		report.PendingHandoffs = len(pending)
	}
	return renderStatus(cmd.OutOrStdout(), report)
}

func renderStatus(w io.Writer, report statusReport) error {
	format := getOutput()
	if format != formatter.FormatTable {
		return formatter.WriteStructured(w, format, report)
	}

	tbl := formatter.NewTable(w, "PATH", "STATE")
	tbl.SetMaxWidth(0, 60)
	for _, d := range report.Files {
		if d.State == backup.StateInSync && !statusAll {
			continue
		}
		tbl.AddRow(d.Path, string(d.State))
	}
	if err := tbl.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d of %d files out of sync\n", report.OutOfSync, len(report.Files))
	if report.HookInstalled {
		fmt.Fprintln(w, "Handoff hook: installed")
	} else {
		fmt.Fprintln(w, "Handoff hook: not installed (run 'ccsync hooks install')")
	}
	fmt.Fprintf(w, "Pending handoffs: %d\n", report.PendingHandoffs)
	return nil
}

// settingsPath is the assistant settings file inside the source directory.
func settingsPath(c *config.Config) string {
	return filepath.Join(c.Backup.SourceDir, "settings.json")
}
