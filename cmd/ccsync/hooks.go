package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccsync/ccsync/internal/formatter"
	"github.com/ccsync/ccsync/internal/settings"
)

var (
	hooksSettingsPath string
	hooksCommand      string
	hooksTimeout      int
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage the handoff hook registration",
	Long: `Register, inspect or remove the handoff hook in the assistant's
settings.json (default <source_dir>/settings.json).

Only hook groups whose command runs ccsync are touched; every other key and
hook group is preserved. The previous file is saved next to it with a
.backup.<timestamp> suffix before each write.`,
}

var hooksInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register 'ccsync handoff check' on UserPromptSubmit",
	Args:  cobra.NoArgs,
	RunE:  runHooksInstall,
}

var hooksShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show hook coverage per event",
	Args:  cobra.NoArgs,
	RunE:  runHooksShow,
}

var hooksUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove ccsync hook groups",
	Args:  cobra.NoArgs,
	RunE:  runHooksUninstall,
}

func init() {
	rootCmd.AddCommand(hooksCmd)
	hooksCmd.AddCommand(hooksInstallCmd, hooksShowCmd, hooksUninstallCmd)

	hooksCmd.PersistentFlags().StringVar(&hooksSettingsPath, "settings", "", "Path to settings.json")
	hooksInstallCmd.Flags().StringVar(&hooksCommand, "command", settings.DefaultCommand, "Hook command to register")
	hooksInstallCmd.Flags().IntVar(&hooksTimeout, "timeout", settings.DefaultTimeout, "Hook timeout in seconds")
}

func resolveSettingsPath() string {
	if p := strings.TrimSpace(hooksSettingsPath); p != "" {
		return p
	}
	return settingsPath(currentConfig())
}

func runHooksInstall(cmd *cobra.Command, args []string) error {
	path := resolveSettingsPath()
	change, err := settings.Install(path, settings.InstallOptions{
		Command: hooksCommand,
		Timeout: hooksTimeout,
		DryRun:  dryRun,
		Now:     time.Now(),
	})
	if err != nil {
		return err
	}
	return reportChange(cmd.OutOrStdout(), change, "Installed handoff hook in")
}

func runHooksUninstall(cmd *cobra.Command, args []string) error {
	change, err := settings.Uninstall(resolveSettingsPath(), dryRun, time.Now())
	if err != nil {
		return err
	}
	return reportChange(cmd.OutOrStdout(), change, "Removed ccsync hooks from")
}

func reportChange(w io.Writer, change *settings.Change, done string) error {
	switch {
	case change.Unchanged:
		fmt.Fprintf(w, "%s is already up to date.\n", change.Path)
	case !change.Written:
		fmt.Fprintf(w, "[dry-run] Would write %s:\n", change.Path)
		_, err := w.Write(change.Data)
		return err
	default:
		if change.BackupPath != "" {
			fmt.Fprintf(w, "Backed up existing settings to %s\n", change.BackupPath)
		}
		fmt.Fprintf(w, "%s %s\n", done, change.Path)
	}
	return nil
}

func runHooksShow(cmd *cobra.Command, args []string) error {
	path := resolveSettingsPath()
	events, err := settings.Summarize(path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	format := getOutput()
	if format != formatter.FormatTable {
		return formatter.WriteStructured(w, format, events)
	}

	if len(events) == 0 {
		fmt.Fprintf(w, "No hooks configured in %s\n", path)
		fmt.Fprintln(w, "Run 'ccsync hooks install' to set up the handoff hook.")
		return nil
	}
	tbl := formatter.NewTable(w, "EVENT", "GROUPS", "HOOKS", "CCSYNC")
	installed := false
	for _, e := range events {
		mark := ""
		if e.Managed {
			mark = "yes"
			if e.Event == settings.EventUserPromptSubmit {
				installed = true
			}
		}
		tbl.AddRow(e.Event, strconv.Itoa(e.Groups), strconv.Itoa(e.Hooks), mark)
	}
	if err := tbl.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if installed {
		fmt.Fprintln(w, "Handoff hook is installed.")
	} else {
		fmt.Fprintln(w, "Handoff hook not found. Run 'ccsync hooks install' to set it up.")
	}
	return nil
}
