// Package settings edits the hook registrations in the assistant's
// settings.json. The file is handled as a generic JSON object so keys this
// package does not know about survive a rewrite.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// EventUserPromptSubmit fires before each prompt is sent; hooks on it may
// add context by printing to stdout.
const EventUserPromptSubmit = "UserPromptSubmit"

// DefaultCommand is the hook command registered by Install.
const DefaultCommand = "ccsync handoff check"

// DefaultTimeout is the hook timeout in seconds.
const DefaultTimeout = 10

// ErrInvalidSettings is returned when settings.json cannot be interpreted.
var ErrInvalidSettings = errors.New("invalid settings file")

// HookEntry is a single hook command.
type HookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// HookGroup is a hook group with an optional matcher.
// Format: {"matcher": "Write|Edit", "hooks": [{"type": "command", "command": "..."}]}
type HookGroup struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []HookEntry `json:"hooks"`
}

// InstallOptions control Install.
type InstallOptions struct {
	Command string
	Timeout int
	DryRun  bool
	// Now stamps the backup file name.
	Now time.Time
}

// Change describes a settings rewrite.
type Change struct {
	Path       string
	BackupPath string
	// Data is the full settings document that was (or would be) written.
	Data    []byte
	Written bool
	// Unchanged is set when the file already matched.
	Unchanged bool
}

// EventSummary reports the hooks registered for one event.
type EventSummary struct {
	Event   string `json:"event"`
	Groups  int    `json:"groups"`
	Hooks   int    `json:"hooks"`
	Managed bool   `json:"managed"`
}

// DefaultPath returns ~/.claude/settings.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".claude", "settings.json"), nil
}

// Load reads path as a JSON object. A missing file yields an empty object.
func Load(path string) (map[string]any, error) {
	raw := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return raw, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, path, err)
	}
	if h, ok := raw["hooks"]; ok && h != nil {
		if _, ok := h.(map[string]any); !ok {
			return nil, fmt.Errorf("%w: %s: hooks is not an object", ErrInvalidSettings, path)
		}
	}
	return raw, nil
}

// Install registers command under UserPromptSubmit, replacing any group this
// tool manages and leaving every other group in place. The previous file is
// copied aside with a timestamp suffix before it is overwritten.
func Install(path string, opts InstallOptions) (*Change, error) {
	if strings.TrimSpace(opts.Command) == "" {
		opts.Command = DefaultCommand
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	raw, err := Load(path)
	if err != nil {
		return nil, err
	}
	hooksMap := cloneHooksMap(raw)
	groups := filterUnmanagedGroups(hooksMap, EventUserPromptSubmit)
	groups = append(groups, hookGroupToMap(HookGroup{
		Hooks: []HookEntry{{Type: "command", Command: opts.Command, Timeout: opts.Timeout}},
	}))
	hooksMap[EventUserPromptSubmit] = groups
	raw["hooks"] = hooksMap

	return commit(path, raw, opts.DryRun, opts.Now)
}

// Uninstall removes every group this tool manages. Events left without
// groups are dropped, and an empty hooks object is removed entirely.
func Uninstall(path string, dryRun bool, now time.Time) (*Change, error) {
	raw, err := Load(path)
	if err != nil {
		return nil, err
	}
	hooksMap := cloneHooksMap(raw)
	for event := range hooksMap {
		if _, ok := hooksMap[event].([]any); !ok {
			continue
		}
		kept := filterUnmanagedGroups(hooksMap, event)
		if len(kept) == 0 {
			delete(hooksMap, event)
		} else {
			hooksMap[event] = kept
		}
	}
	if len(hooksMap) == 0 {
		delete(raw, "hooks")
	} else {
		raw["hooks"] = hooksMap
	}
	return commit(path, raw, dryRun, now)
}

// Installed reports whether a managed hook is registered under UserPromptSubmit.
func Installed(path string) (bool, error) {
	raw, err := Load(path)
	if err != nil {
		return false, err
	}
	return groupsContainManaged(cloneHooksMap(raw), EventUserPromptSubmit), nil
}

// Summarize lists every event in the hooks object, sorted by name.
func Summarize(path string) ([]EventSummary, error) {
	raw, err := Load(path)
	if err != nil {
		return nil, err
	}
	hooksMap := cloneHooksMap(raw)
	out := make([]EventSummary, 0, len(hooksMap))
	for event, v := range hooksMap {
		groups, _ := v.([]any)
		out = append(out, EventSummary{
			Event:   event,
			Groups:  len(groups),
			Hooks:   countGroupHooks(groups),
			Managed: groupsContainManaged(hooksMap, event),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event < out[j].Event })
	return out, nil
}

// commit writes raw to path unless it is unchanged or dryRun is set.
func commit(path string, raw map[string]any, dryRun bool, now time.Time) (*Change, error) {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')
	change := &Change{Path: path, Data: data}

	existing, err := os.ReadFile(path)
	if err == nil && canonicalEqual(existing, data) {
		change.Unchanged = true
		return change, nil
	}
	if dryRun {
		return change, nil
	}

	if err == nil {
		if now.IsZero() {
			now = time.Now()
		}
		change.BackupPath = fmt.Sprintf("%s.backup.%s", path, now.Format("20060102-150405"))
		if err := os.WriteFile(change.BackupPath, existing, 0o600); err != nil {
			return nil, fmt.Errorf("create backup: %w", err)
		}
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return nil, fmt.Errorf("write settings: %w", err)
	}
	change.Written = true
	return change, nil
}

// canonicalEqual compares two JSON documents ignoring formatting.
func canonicalEqual(a, b []byte) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	ac, _ := json.Marshal(av)
	bc, _ := json.Marshal(bv)
	return bytes.Equal(ac, bc)
}

func cloneHooksMap(raw map[string]any) map[string]any {
	hooksMap := make(map[string]any)
	if existing, ok := raw["hooks"].(map[string]any); ok {
		for k, v := range existing {
			hooksMap[k] = v
		}
	}
	return hooksMap
}

// filterUnmanagedGroups returns the groups under event that this tool does not own.
func filterUnmanagedGroups(hooksMap map[string]any, event string) []any {
	result := make([]any, 0)
	groups, ok := hooksMap[event].([]any)
	if !ok {
		return result
	}
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok || !groupIsManaged(group) {
			result = append(result, g)
		}
	}
	return result
}

func groupsContainManaged(hooksMap map[string]any, event string) bool {
	groups, ok := hooksMap[event].([]any)
	if !ok {
		return false
	}
	for _, g := range groups {
		if group, ok := g.(map[string]any); ok && groupIsManaged(group) {
			return true
		}
	}
	return false
}

func groupIsManaged(group map[string]any) bool {
	hooks, ok := group["hooks"].([]any)
	if !ok {
		return false
	}
	for _, h := range hooks {
		hook, ok := h.(map[string]any)
		if !ok {
			continue
		}
		if cmd, ok := hook["command"].(string); ok && isManagedCommand(cmd) {
			return true
		}
	}
	return false
}

// isManagedCommand matches "ccsync ..." and "/path/to/ccsync ...".
func isManagedCommand(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}
	return filepath.Base(fields[0]) == "ccsync"
}

func countGroupHooks(groups []any) int {
	count := 0
	for _, g := range groups {
		gm, ok := g.(map[string]any)
		if !ok {
			continue
		}
		if hs, ok := gm["hooks"].([]any); ok {
			count += len(hs)
		}
	}
	return count
}

// hookGroupToMap converts a HookGroup to the generic form stored in settings.
func hookGroupToMap(g HookGroup) map[string]any {
	hooks := make([]any, len(g.Hooks))
	for i, h := range g.Hooks {
		entry := map[string]any{
			"type":    h.Type,
			"command": h.Command,
		}
		if h.Timeout > 0 {
			entry["timeout"] = h.Timeout
		}
		hooks[i] = entry
	}
	result := map[string]any{
		"hooks": hooks,
	}
	if g.Matcher != "" {
		result["matcher"] = g.Matcher
	}
	return result
}
