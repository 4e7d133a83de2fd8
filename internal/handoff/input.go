package handoff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Input is the JSON object the assistant writes to a hook's stdin.
// Only the transcript path and the window size drive the decision; the
// other fields are carried into the log line when present.
type Input struct {
	SessionID      string        `json:"session_id,omitempty"`
	TranscriptPath string        `json:"transcript_path"`
	HookEventName  string        `json:"hook_event_name,omitempty"`
	ContextWindow  ContextWindow `json:"context_window"`
}

// ContextWindow describes the model's context window.
type ContextWindow struct {
	ContextWindowSize int `json:"context_window_size"`
}

// ParseInput decodes one hook input object from r.
func ParseInput(r io.Reader) (Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("read hook input: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Input{}, ErrEmptyInput
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("decode hook input: %w", err)
	}
	in.TranscriptPath = strings.TrimSpace(in.TranscriptPath)
	return in, nil
}

// Session returns the session identifier, falling back to the transcript's
// file name (transcripts are stored as <session-id>.jsonl).
func (in Input) Session() string {
	if s := strings.TrimSpace(in.SessionID); s != "" {
		return s
	}
	if in.TranscriptPath == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(in.TranscriptPath), filepath.Ext(in.TranscriptPath))
}
