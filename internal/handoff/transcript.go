package handoff

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
)

// tailMaxBytes bounds how much of a transcript is read on the fast path.
const tailMaxBytes int64 = 512 * 1024

// maxLineBytes bounds a single transcript record; tool results can be large.
const maxLineBytes = 16 * 1024 * 1024

// Usage is the token accounting of one assistant message.
type Usage struct {
	InputTokens              int       `json:"input_tokens"`
	CacheCreationInputTokens int       `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int       `json:"cache_read_input_tokens"`
	OutputTokens             int       `json:"output_tokens"`
	Model                    string    `json:"model,omitempty"`
	Timestamp                time.Time `json:"timestamp,omitzero"`
}

// Total is the context occupied by the prompt: fresh input plus both cache
// fields. Output tokens are not counted.
func (u Usage) Total() int {
	return u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

type recordEnvelope struct {
	Timestamp string `json:"timestamp"`
	Message   struct {
		Model string          `json:"model"`
		Usage json.RawMessage `json:"usage"`
	} `json:"message"`
}

// LastUsage returns the usage of the newest transcript record that carries a
// message.usage object. Only the tail of the file is read unless the tail has
// no such record, in which case the whole file is scanned.
func LastUsage(path string) (Usage, error) {
	if strings.TrimSpace(path) == "" {
		return Usage{}, ErrTranscriptMissing
	}

	tail, truncated, err := readFileTail(path, tailMaxBytes)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Usage{}, fmt.Errorf("%w: %s", ErrTranscriptMissing, path)
		}
		return Usage{}, fmt.Errorf("read transcript: %w", err)
	}

	if u, ok := lastUsageIn(tail); ok {
		return u, nil
	}
	if !truncated {
		return Usage{}, ErrNoUsage
	}

	u, ok, err := scanFile(path)
	if err != nil {
		return Usage{}, err
	}
	if !ok {
		return Usage{}, ErrNoUsage
	}
	return u, nil
}

// lastUsageIn walks the lines of data newest-first.
func lastUsageIn(data []byte) (Usage, bool) {
	lines := bytes.Split(data, []byte{'\n'})
	for i := len(lines) - 1; i >= 0; i-- {
		if u, ok := parseRecord(lines[i]); ok {
			return u, true
		}
	}
	return Usage{}, false
}

// scanFile reads the whole transcript front to back, keeping the last hit.
func scanFile(path string) (Usage, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Usage{}, false, fmt.Errorf("open transcript: %w", err)
	}
	defer func() { _ = f.Close() }()

	var (
		last  Usage
		found bool
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if u, ok := parseRecord(scanner.Bytes()); ok {
			last, found = u, true
		}
	}
	if err := scanner.Err(); err != nil {
		return Usage{}, false, fmt.Errorf("scan transcript: %w", err)
	}
	return last, found, nil
}

// parseRecord decodes one JSONL record. Blank and malformed lines, and lines
// whose message has no usage object, do not qualify.
func parseRecord(line []byte) (Usage, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Usage{}, false
	}
	var rec recordEnvelope
	if err := json.Unmarshal(line, &rec); err != nil {
		return Usage{}, false
	}
	raw := bytes.TrimSpace(rec.Message.Usage)
	if len(raw) == 0 || raw[0] != '{' {
		return Usage{}, false
	}
	var u Usage
	if err := json.Unmarshal(raw, &u); err != nil {
		return Usage{}, false
	}
	u.Model = rec.Message.Model
	u.Timestamp = parseTimestamp(rec.Timestamp)
	return u, true
}

// readFileTail returns at most maxBytes from the end of path, starting at a
// line boundary. truncated reports whether earlier bytes were skipped.
func readFileTail(path string, maxBytes int64) (data []byte, truncated bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if fi.IsDir() {
		return nil, false, fmt.Errorf("%s is a directory", path)
	}
	size := fi.Size()
	if size == 0 {
		return []byte{}, false, nil
	}

	start := int64(0)
	if size > maxBytes {
		start = size - maxBytes
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, false, err
	}
	data, err = io.ReadAll(f)
	if err != nil {
		return nil, false, err
	}
	if start > 0 {
		// Drop the partial first line.
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			data = data[idx+1:]
		}
	}
	return data, start > 0, nil
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}
