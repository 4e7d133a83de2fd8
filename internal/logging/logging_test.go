package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_VerboseGatesDebug(t *testing.T) {
	var quiet, loud bytes.Buffer

	New(&quiet, false).Debug("hidden")
	New(&loud, true).Debug("shown", zap.String("k", "v"))

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "shown")
	assert.Contains(t, loud.String(), `"k": "v"`)
}

func TestOpenFile_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "handoff.log")

	for i := 0; i < 2; i++ {
		l, err := OpenFile(path)
		require.NoError(t, err)
		l.Info("context usage", zap.Int("run", i))
		require.NoError(t, l.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	for i, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "context usage", entry["msg"])
		assert.Equal(t, float64(i), entry["run"])
		assert.Contains(t, entry, "ts")
	}
}

func TestOpenFile_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := OpenFile(filepath.Join(blocker, "handoff.log"))
	assert.Error(t, err)
}
