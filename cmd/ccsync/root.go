package main

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccsync/ccsync/internal/config"
	"github.com/ccsync/ccsync/internal/formatter"
	"github.com/ccsync/ccsync/internal/logging"
)

var (
	// Global flags
	dryRun  bool
	verbose bool
	output  string
	cfgFile string

	// Loaded in PersistentPreRunE.
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ccsync",
	Short: "Back up assistant config and guard the context window",
	Long: `ccsync keeps a version-controlled copy of ~/.claude and runs the
context-window handoff hook.

Backup:
  backup       Copy configured items into the sync directory
  status       Show which files differ from the last backup

Handoff:
  handoff      Hook entry point and pending handoff markers
  hooks        Register the handoff hook in settings.json

Other:
  config       Show resolved configuration
  version      Show version information`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Show what would happen without writing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .ccsync/config.yaml)")
}

// loadRuntime reads .env, resolves configuration and builds the stderr logger.
func loadRuntime(cmd *cobra.Command, args []string) error {
	// A missing .env is normal.
	_ = godotenv.Load()
	syncConfigFlagToEnv()

	c, err := config.Load(flagOverrides())
	if err != nil {
		return err
	}
	if err := formatter.Validate(c.Output); err != nil {
		return err
	}
	cfg = c
	logger = logging.NewStderr(c.Verbose)
	return nil
}

// flagOverrides returns the config layer set on the command line.
func flagOverrides() *config.Config {
	return &config.Config{
		Output:  strings.TrimSpace(output),
		Verbose: verbose,
	}
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return
	}
	_ = os.Setenv("CCSYNC_CONFIG", path)
}

// currentConfig returns the loaded config, falling back to defaults when a
// handler runs without the root pre-run.
func currentConfig() *config.Config {
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}

// getLogger returns the stderr logger or a no-op logger.
func getLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// getOutput returns the effective output format.
func getOutput() string {
	if o := strings.TrimSpace(output); o != "" {
		return o
	}
	return currentConfig().Output
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
