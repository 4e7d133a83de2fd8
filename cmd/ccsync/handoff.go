package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccsync/ccsync/internal/formatter"
	"github.com/ccsync/ccsync/internal/handoff"
	"github.com/ccsync/ccsync/internal/logging"
)

var (
	handoffThreshold   int
	handoffWriteMarker bool
)

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Context-window handoff hook and markers",
	Long: `The handoff hook reads the hook input on stdin, finds the last token
usage record in the session transcript and prints a handoff instruction once
usage is above the threshold (default 70%).

Register it with 'ccsync hooks install'.`,
}

var handoffCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Hook entry point: print the handoff block when over threshold",
	Long: `Read the hook JSON on stdin, compute context usage from the last usage
record in the transcript and append one line to the handoff log.

Stdout is empty unless usage is strictly above the threshold, in which case
it carries only the handoff block.`,
	Args: cobra.NoArgs,
	RunE: runHandoffCheck,
}

var handoffNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Print the handoff block unconditionally",
	Args:  cobra.NoArgs,
	RunE:  runHandoffNow,
}

var handoffPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List handoff markers that have not been consumed",
	Args:  cobra.NoArgs,
	RunE:  runHandoffPending,
}

var handoffConsumeCmd = &cobra.Command{
	Use:   "consume <id>",
	Short: "Mark a pending handoff as picked up",
	Args:  cobra.ExactArgs(1),
	RunE:  runHandoffConsume,
}

func init() {
	rootCmd.AddCommand(handoffCmd)
	handoffCmd.AddCommand(handoffCheckCmd, handoffNowCmd, handoffPendingCmd, handoffConsumeCmd)

	handoffCheckCmd.Flags().IntVar(&handoffThreshold, "threshold", 0, "Usage percent that must be exceeded (default from config, 70)")
	handoffCheckCmd.Flags().BoolVar(&handoffWriteMarker, "write-marker", false, "Record a pending marker when the threshold is exceeded")
}

func runHandoffCheck(cmd *cobra.Command, args []string) error {
	c := currentConfig()

	in, err := handoff.ParseInput(cmd.InOrStdin())
	if err != nil && !errors.Is(err, handoff.ErrEmptyInput) {
		return err
	}

	fileLog, err := logging.OpenFile(c.Handoff.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = fileLog.Close() }()

	s := handoff.Settings{
		Threshold:     c.Handoff.ThresholdPercent,
		DefaultWindow: c.Handoff.DefaultWindow,
	}
	if handoffThreshold > 0 {
		s.Threshold = handoffThreshold
	}
	if handoffWriteMarker && !dryRun {
		s.MarkerDir = c.Handoff.MarkerDir
	}

	rep, err := handoff.Check(commandContext(cmd), in, s, fileLog.Logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	getLogger().Debug("handoff check",
		zap.Int("percent", rep.Percent),
		zap.Int("threshold", rep.Threshold),
		zap.Bool("triggered", rep.Printed))
	return nil
}

func runHandoffNow(cmd *cobra.Command, args []string) error {
	if _, err := io.WriteString(cmd.OutOrStdout(), handoff.ManualMessage()); err != nil {
		return err
	}

	fileLog, err := logging.OpenFile(currentConfig().Handoff.LogFile)
	if err != nil {
		getLogger().Warn("handoff log unavailable", zap.Error(err))
		return nil
	}
	defer func() { _ = fileLog.Close() }()
	fileLog.Info("handoff manual", zap.Bool("triggered", true))
	return nil
}

func runHandoffPending(cmd *cobra.Command, args []string) error {
	markers, err := handoff.PendingMarkers(currentConfig().Handoff.MarkerDir)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	format := getOutput()
	if format != formatter.FormatTable {
		if markers == nil {
			markers = []handoff.Marker{}
		}
		return formatter.WriteStructured(w, format, markers)
	}

	if len(markers) == 0 {
		fmt.Fprintln(w, "No pending handoffs.")
		return nil
	}
	tbl := formatter.NewTable(w, "ID", "SESSION", "USAGE", "CREATED")
	tbl.SetMaxWidth(1, 40)
	for _, m := range markers {
		tbl.AddRow(m.ID, m.SessionID, strconv.Itoa(m.Percent)+"%", m.CreatedAt.Local().Format(time.DateTime))
	}
	return tbl.Render()
}

func runHandoffConsume(cmd *cobra.Command, args []string) error {
	dir := currentConfig().Handoff.MarkerDir
	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "[dry-run] Would consume %s\n", args[0])
		return nil
	}
	m, err := handoff.ConsumeMarker(dir, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Consumed %s (session %s, %d%%)\n", m.ID, m.SessionID, m.Percent)
	return nil
}
