package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/ccsync/ccsync/internal/config"
)

// setupCommandTest isolates HOME, clears CCSYNC_* and installs a config that
// points every path into temp dirs. Globals are restored on cleanup.
func setupCommandTest(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "CCSYNC_") {
			t.Setenv(k, "")
		}
	}
	t.Chdir(t.TempDir())

	c := config.Default()
	c.Backup.SourceDir = filepath.Join(home, ".claude")
	c.Backup.DestDir = filepath.Join(t.TempDir(), "repo", "claude")
	c.Handoff.LogFile = filepath.Join(home, ".claude", "logs", "handoff.log")
	c.Handoff.MarkerDir = filepath.Join(home, ".claude", "handoff", "pending")

	oldCfg, oldOutput, oldDryRun, oldVerbose := cfg, output, dryRun, verbose
	oldThreshold, oldMarker := handoffThreshold, handoffWriteMarker
	oldCommit, oldWatch, oldSettings := backupCommit, backupWatch, hooksSettingsPath
	oldHookCmd, oldHookTimeout := hooksCommand, hooksTimeout
	t.Cleanup(func() {
		cfg, output, dryRun, verbose = oldCfg, oldOutput, oldDryRun, oldVerbose
		handoffThreshold, handoffWriteMarker = oldThreshold, oldMarker
		backupCommit, backupWatch, hooksSettingsPath = oldCommit, oldWatch, oldSettings
		hooksCommand, hooksTimeout = oldHookCmd, oldHookTimeout
	})
	cfg = c
	output = ""
	dryRun = false
	verbose = false
	handoffThreshold = 0
	handoffWriteMarker = false
	backupCommit = false
	backupWatch = false
	hooksSettingsPath = ""
	hooksCommand = "ccsync handoff check"
	hooksTimeout = 10
	return c
}

// newTestCommand returns a bare command wired to the given stdin.
func newTestCommand(stdin string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	return cmd, &out
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}
