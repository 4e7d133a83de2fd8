package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const markerSchemaVersion = 1

// Marker records that a session crossed its threshold and still owes a
// handoff. A new session consumes it once the handoff has been picked up.
type Marker struct {
	SchemaVersion int       `json:"schema_version"`
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	Percent       int       `json:"percent"`
	Tokens        int       `json:"tokens"`
	Window        int       `json:"window"`
	Threshold     int       `json:"threshold"`
	Level         Level     `json:"level"`
	Consumed      bool      `json:"consumed"`
	ConsumedAt    time.Time `json:"consumed_at,omitzero"`
}

// now is replaced in tests.
var now = time.Now

// WriteMarker writes a pending marker for session into dir. Each session has
// at most one unconsumed marker: when one exists its path is returned and
// created is false. An empty session is rejected with ErrNoSession.
func WriteMarker(dir, session string, b Budget) (path string, created bool, err error) {
	if strings.TrimSpace(session) == "" {
		return "", false, ErrNoSession
	}
	existing, err := readMarkers(dir)
	if err != nil {
		return "", false, err
	}
	for _, m := range existing {
		if !m.Consumed && m.SessionID == session {
			return markerPath(dir, m.ID), false, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create marker dir: %w", err)
	}
	m := Marker{
		SchemaVersion: markerSchemaVersion,
		ID:            uuid.NewString(),
		SessionID:     session,
		CreatedAt:     now().UTC(),
		Percent:       b.Percent,
		Tokens:        b.Tokens,
		Window:        b.Window,
		Threshold:     b.Threshold,
		Level:         b.Level(),
	}
	path = markerPath(dir, m.ID)
	if err := writeMarkerFile(path, m); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// PendingMarkers returns the unconsumed markers in dir, oldest first.
// A missing directory has no markers.
func PendingMarkers(dir string) ([]Marker, error) {
	all, err := readMarkers(dir)
	if err != nil {
		return nil, err
	}
	var pending []Marker
	for _, m := range all {
		if !m.Consumed {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// ConsumeMarker marks the pending marker id as consumed and returns it.
func ConsumeMarker(dir, id string) (Marker, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Marker{}, fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	path := markerPath(dir, id)
	m, err := readMarkerFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Marker{}, fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
		}
		return Marker{}, err
	}
	if m.Consumed {
		return Marker{}, fmt.Errorf("%w: %s already consumed", ErrMarkerNotFound, id)
	}
	m.Consumed = true
	m.ConsumedAt = now().UTC()
	if err := writeMarkerFile(path, m); err != nil {
		return Marker{}, err
	}
	return m, nil
}

func markerPath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

// readMarkers loads every marker file in dir, skipping unreadable ones.
func readMarkers(dir string) ([]Marker, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read marker dir: %w", err)
	}
	var out []Marker
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		m, err := readMarkerFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func readMarkerFile(path string) (Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Marker{}, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, fmt.Errorf("decode marker %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// writeMarkerFile replaces path atomically.
func writeMarkerFile(path string, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal marker: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".marker-*")
	if err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}
