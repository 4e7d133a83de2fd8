package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccsync/ccsync/internal/backup"
	"github.com/ccsync/ccsync/internal/config"
	"github.com/ccsync/ccsync/internal/formatter"
)

var (
	backupCommit   bool
	backupWatch    bool
	backupDebounce time.Duration
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy configured items into the sync directory",
	Long: `Copy the configured files and directories from the source directory
(default ~/.claude) into the sync directory (default ./claude).

Symbolic links are never copied, at the top level or inside directories.
Files matching an exclude pattern are skipped. Files already identical in the
destination are left untouched, and destination files with no source
counterpart are kept.

Examples:
  ccsync backup
  ccsync backup --dry-run
  ccsync backup --commit
  ccsync backup --watch --commit`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().BoolVar(&backupCommit, "commit", false, "Commit the sync directory to its git repository")
	backupCmd.Flags().BoolVar(&backupWatch, "watch", false, "Keep running and back up again on every change")
	backupCmd.Flags().DurationVar(&backupDebounce, "debounce", backup.DefaultDebounce, "Quiet period before a watch-triggered backup")
}

// backupReport is the structured form of a backup run.
type backupReport struct {
	Entries []backup.Entry `json:"entries" yaml:"entries"`
	Counts  map[string]int `json:"counts" yaml:"counts"`
	Commit  string         `json:"commit,omitempty" yaml:"commit,omitempty"`
	DryRun  bool           `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

func backupOptions(c *config.Config) backup.Options {
	return backup.Options{
		SourceDir: c.Backup.SourceDir,
		DestDir:   c.Backup.DestDir,
		Items:     c.Backup.Items,
		Exclude:   c.Backup.Exclude,
		Workers:   c.Backup.Workers,
		DryRun:    dryRun,
	}
}

func runBackup(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	ctx := commandContext(cmd)
	commit := backupCommit || c.Backup.Commit

	if backupWatch {
		return runBackupWatch(ctx, cmd.OutOrStdout(), c, commit)
	}

	report, err := backupOnce(ctx, c, commit)
	if err != nil {
		return err
	}
	return renderBackup(cmd.OutOrStdout(), report)
}

// backupOnce copies and, when asked, commits.
func backupOnce(ctx context.Context, c *config.Config, commit bool) (*backupReport, error) {
	opts := backupOptions(c)
	res, err := backup.Run(ctx, opts, getLogger())
	if err != nil {
		return nil, err
	}

	report := &backupReport{Entries: res.Entries, Counts: countsByName(res), DryRun: opts.DryRun}
	if !commit || opts.DryRun {
		return report, nil
	}

	hash, err := backup.Commit(c.Backup.DestDir, c.Backup.CommitMessage,
		backup.Author{Name: c.Backup.AuthorName, Email: c.Backup.AuthorEmail}, time.Now())
	switch {
	case errors.Is(err, backup.ErrNothingToCommit):
		getLogger().Debug("nothing to commit", zap.String("dest", c.Backup.DestDir))
	case err != nil:
		return nil, err
	default:
		report.Commit = hash
		getLogger().Info("committed backup", zap.String("commit", shortHash(hash)))
	}
	return report, nil
}

func runBackupWatch(ctx context.Context, w io.Writer, c *config.Config, commit bool) error {
	report, err := backupOnce(ctx, c, commit)
	if err != nil {
		return err
	}
	if err := renderBackup(w, report); err != nil {
		return err
	}

	watcher, err := backup.NewWatcher(backupOptions(c), backupDebounce, getLogger(),
		func(ctx context.Context, changed []string) {
			getLogger().Info("change detected", zap.Int("paths", len(changed)))
			report, err := backupOnce(ctx, c, commit)
			if err != nil {
				getLogger().Error("backup failed", zap.Error(err))
				return
			}
			if err := renderBackup(w, report); err != nil {
				getLogger().Warn("render backup", zap.Error(err))
			}
		})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		watcher.Stop()
		return err
	}
	getLogger().Info("watching for changes", zap.String("source", c.Backup.SourceDir))

	<-ctx.Done()
	watcher.Stop()
	return nil
}

func renderBackup(w io.Writer, report *backupReport) error {
	format := getOutput()
	if format != formatter.FormatTable {
		return formatter.WriteStructured(w, format, report)
	}

	tbl := formatter.NewTable(w, "PATH", "ACTION", "BYTES")
	tbl.SetMaxWidth(0, 60)
	for _, e := range report.Entries {
		if e.Action == backup.ActionUnchanged && !verbose {
			continue
		}
		size := ""
		if e.Bytes > 0 {
			size = strconv.FormatInt(e.Bytes, 10)
		}
		tbl.AddRow(e.Path, string(e.Action), size)
	}
	if err := tbl.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w, summarizeCounts(report.Counts))
	if report.Commit != "" {
		fmt.Fprintf(w, "Committed %s\n", shortHash(report.Commit))
	}
	return nil
}

func countsByName(res *backup.Result) map[string]int {
	out := make(map[string]int)
	for action, n := range res.Counts() {
		out[string(action)] = n
	}
	return out
}

// summarizeCounts renders "3 copied, 12 unchanged" in a stable order.
func summarizeCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "Nothing to back up."
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	s := ""
	for i, name := range names {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d %s", counts[name], name)
	}
	return s
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
