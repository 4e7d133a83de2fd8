package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccsync/ccsync/internal/handoff"
)

func writeSession(t *testing.T, dir string, tokens int) string {
	t.Helper()
	path := filepath.Join(dir, "projects", "demo", "sess-1.jsonl")
	mustWrite(t, path, strings.Join([]string{
		`{"type":"user","message":{"role":"user","content":"start"}}`,
		fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","usage":{"input_tokens":%d,"cache_creation_input_tokens":0,"cache_read_input_tokens":0,"output_tokens":10}}}`, tokens),
	}, "\n")+"\n")
	return path
}

func hookInput(t *testing.T, transcript string, window int) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"session_id":      "sess-1",
		"transcript_path": transcript,
		"hook_event_name": "UserPromptSubmit",
		"context_window":  map[string]any{"context_window_size": window},
	})
	require.NoError(t, err)
	return string(data)
}

func TestHandoffCheck_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		tokens  int
		printed bool
	}{
		{"at 70 percent stays quiet", 140000, false},
		{"at 71 percent prints", 142000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupCommandTest(t)
			transcript := writeSession(t, t.TempDir(), tt.tokens)

			cmd, out := newTestCommand(hookInput(t, transcript, 200000))
			require.NoError(t, runHandoffCheck(cmd, nil))

			if tt.printed {
				want := handoff.Message(handoff.Budget{Tokens: tt.tokens, Window: 200000, Percent: 71, Threshold: 70})
				assert.Equal(t, want, out.String())
			} else {
				assert.Empty(t, out.String())
			}
			assert.Equal(t, 1, countLines(t, c.Handoff.LogFile))
		})
	}
}

func TestHandoffCheck_LogsEveryInvocation(t *testing.T) {
	c := setupCommandTest(t)
	transcript := writeSession(t, t.TempDir(), 1000)

	for i := 0; i < 3; i++ {
		cmd, _ := newTestCommand(hookInput(t, transcript, 200000))
		require.NoError(t, runHandoffCheck(cmd, nil))
	}
	assert.Equal(t, 3, countLines(t, c.Handoff.LogFile))
}

func TestHandoffCheck_EmptyStdin(t *testing.T) {
	c := setupCommandTest(t)

	cmd, out := newTestCommand("")
	require.NoError(t, runHandoffCheck(cmd, nil))
	assert.Empty(t, out.String())
	assert.Equal(t, 1, countLines(t, c.Handoff.LogFile))
}

func TestHandoffCheck_MalformedInput(t *testing.T) {
	setupCommandTest(t)
	cmd, out := newTestCommand("{nope")
	assert.Error(t, runHandoffCheck(cmd, nil))
	assert.Empty(t, out.String())
}

func TestHandoffCheck_ThresholdFlagAndMarker(t *testing.T) {
	c := setupCommandTest(t)
	transcript := writeSession(t, t.TempDir(), 150000)
	handoffThreshold = 80
	handoffWriteMarker = true

	cmd, out := newTestCommand(hookInput(t, transcript, 200000))
	require.NoError(t, runHandoffCheck(cmd, nil))
	assert.Empty(t, out.String(), "75 percent does not exceed 80")

	handoffThreshold = 74
	cmd, out = newTestCommand(hookInput(t, transcript, 200000))
	require.NoError(t, runHandoffCheck(cmd, nil))
	assert.Contains(t, out.String(), "75%")

	pending, err := handoff.PendingMarkers(c.Handoff.MarkerDir)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	cmd, out = newTestCommand("")
	require.NoError(t, runHandoffConsume(cmd, []string{pending[0].ID}))
	assert.Contains(t, out.String(), "Consumed "+pending[0].ID)

	cmd, out = newTestCommand("")
	require.NoError(t, runHandoffPending(cmd, nil))
	assert.Equal(t, "No pending handoffs.\n", out.String())
}

func TestHandoffPending_JSON(t *testing.T) {
	c := setupCommandTest(t)
	output = "json"
	_, _, err := handoff.WriteMarker(c.Handoff.MarkerDir, "s", handoff.Budget{Percent: 90, Threshold: 70})
	require.NoError(t, err)

	cmd, out := newTestCommand("")
	require.NoError(t, runHandoffPending(cmd, nil))

	var markers []handoff.Marker
	require.NoError(t, json.Unmarshal(out.Bytes(), &markers))
	require.Len(t, markers, 1)
	assert.Equal(t, 90, markers[0].Percent)
}

func TestHandoffNow(t *testing.T) {
	c := setupCommandTest(t)
	cmd, out := newTestCommand("")
	require.NoError(t, runHandoffNow(cmd, nil))
	assert.Equal(t, handoff.ManualMessage(), out.String())
	assert.Equal(t, 1, countLines(t, c.Handoff.LogFile))
}
