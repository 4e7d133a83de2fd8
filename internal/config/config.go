// Package config provides configuration management for ccsync.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (CCSYNC_*)
// 3. Project config (.ccsync/config.yaml in cwd)
// 4. Home config (~/.ccsync/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all ccsync configuration.
type Config struct {
	// Output controls the default output format (table, json, yaml).
	Output string `yaml:"output" json:"output"`

	// Verbose enables debug logging on stderr.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Backup settings
	Backup BackupConfig `yaml:"backup" json:"backup"`

	// Handoff settings
	Handoff HandoffConfig `yaml:"handoff" json:"handoff"`
}

// BackupConfig holds settings for copying the assistant config directory
// into the sync directory.
type BackupConfig struct {
	// SourceDir is the live config directory.
	// Default: ~/.claude
	SourceDir string `yaml:"source_dir" json:"source_dir"`

	// DestDir is the sync directory the items are copied into.
	// Default: ./claude
	DestDir string `yaml:"dest_dir" json:"dest_dir"`

	// Items are the top-level files and directories copied, relative to SourceDir.
	Items []string `yaml:"items" json:"items"`

	// Exclude holds glob patterns matched against slash paths relative to SourceDir.
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Workers bounds concurrent file copies.
	Workers int `yaml:"workers" json:"workers"`

	// Commit records the copied files in the git repository holding DestDir.
	Commit bool `yaml:"commit" json:"commit"`

	// CommitMessage is the message used for backup commits.
	CommitMessage string `yaml:"commit_message" json:"commit_message"`

	// AuthorName and AuthorEmail sign backup commits.
	AuthorName  string `yaml:"author_name" json:"author_name"`
	AuthorEmail string `yaml:"author_email" json:"author_email"`
}

// HandoffConfig holds settings for the context-window handoff hook.
type HandoffConfig struct {
	// ThresholdPercent is the whole-number usage percentage that must be
	// strictly exceeded before the handoff block is printed.
	ThresholdPercent int `yaml:"threshold_percent" json:"threshold_percent"`

	// DefaultWindow is the context window size used when the hook input omits one.
	DefaultWindow int `yaml:"default_window" json:"default_window"`

	// LogFile receives one JSON line per hook invocation.
	// Default: ~/.claude/logs/handoff.log
	LogFile string `yaml:"log_file" json:"log_file"`

	// MarkerDir holds pending one-shot handoff markers.
	// Default: ~/.claude/handoff/pending
	MarkerDir string `yaml:"marker_dir" json:"marker_dir"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput           = "table"
	defaultWorkers          = 4
	defaultThresholdPercent = 70
	defaultWindow           = 200000
	defaultCommitMessage    = "backup: sync claude config"
	defaultAuthorName       = "ccsync"
	defaultAuthorEmail      = "ccsync@localhost"
)

// DefaultItems are the entries copied out of the config directory when no
// items are configured.
var DefaultItems = []string{
	"CLAUDE.md",
	"settings.json",
	"keybindings.json",
	"skills",
	"commands",
	"agents",
	"hooks",
	"scripts",
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	claudeDir := filepath.Join(homeDir, ".claude")
	return &Config{
		Output:  defaultOutput,
		Verbose: false,
		Backup: BackupConfig{
			SourceDir:     claudeDir,
			DestDir:       "claude",
			Items:         append([]string(nil), DefaultItems...),
			Exclude:       []string{"**/.DS_Store", "**/*.log"},
			Workers:       defaultWorkers,
			CommitMessage: defaultCommitMessage,
			AuthorName:    defaultAuthorName,
			AuthorEmail:   defaultAuthorEmail,
		},
		Handoff: HandoffConfig{
			ThresholdPercent: defaultThresholdPercent,
			DefaultWindow:    defaultWindow,
			LogFile:          filepath.Join(claudeDir, "logs", "handoff.log"),
			MarkerDir:        filepath.Join(claudeDir, "handoff", "pending"),
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	homeConfig, err := loadFromPath(homeConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	projectConfig, err := loadFromPath(projectConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	expandPaths(cfg)
	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ccsync", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("CCSYNC_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".ccsync", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("CCSYNC_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v, ok := getEnvBool("CCSYNC_VERBOSE"); ok && v {
		cfg.Verbose = true
	}
	if v := os.Getenv("CCSYNC_SOURCE_DIR"); v != "" {
		cfg.Backup.SourceDir = v
	}
	if v := os.Getenv("CCSYNC_DEST_DIR"); v != "" {
		cfg.Backup.DestDir = v
	}
	if v := os.Getenv("CCSYNC_ITEMS"); v != "" {
		cfg.Backup.Items = splitList(v)
	}
	if v := os.Getenv("CCSYNC_EXCLUDE"); v != "" {
		cfg.Backup.Exclude = splitList(v)
	}
	if v, err := strconv.Atoi(os.Getenv("CCSYNC_WORKERS")); err == nil && v > 0 {
		cfg.Backup.Workers = v
	}
	if v, ok := getEnvBool("CCSYNC_COMMIT"); ok && v {
		cfg.Backup.Commit = true
	}
	if v, err := strconv.Atoi(os.Getenv("CCSYNC_HANDOFF_THRESHOLD")); err == nil && v > 0 {
		cfg.Handoff.ThresholdPercent = v
	}
	if v := os.Getenv("CCSYNC_HANDOFF_LOG"); v != "" {
		cfg.Handoff.LogFile = v
	}
	if v := os.Getenv("CCSYNC_HANDOFF_MARKER_DIR"); v != "" {
		cfg.Handoff.MarkerDir = v
	}
	return cfg
}

// splitList splits a comma-separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// mergeList overwrites dst with src when src is non-empty.
func mergeList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}

// merge merges src into dst, with src values taking precedence.
// Booleans only ever switch on; there is no way to force one off from a higher layer.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	if src.Verbose {
		dst.Verbose = true
	}

	mergeBackup(&dst.Backup, &src.Backup)
	mergeHandoff(&dst.Handoff, &src.Handoff)

	return dst
}

// mergeBackup merges backup-specific config fields.
func mergeBackup(dst, src *BackupConfig) {
	mergeStr(&dst.SourceDir, src.SourceDir)
	mergeStr(&dst.DestDir, src.DestDir)
	mergeList(&dst.Items, src.Items)
	mergeList(&dst.Exclude, src.Exclude)
	mergeInt(&dst.Workers, src.Workers)
	if src.Commit {
		dst.Commit = true
	}
	mergeStr(&dst.CommitMessage, src.CommitMessage)
	mergeStr(&dst.AuthorName, src.AuthorName)
	mergeStr(&dst.AuthorEmail, src.AuthorEmail)
}

// mergeHandoff merges handoff-specific config fields.
func mergeHandoff(dst, src *HandoffConfig) {
	mergeInt(&dst.ThresholdPercent, src.ThresholdPercent)
	mergeInt(&dst.DefaultWindow, src.DefaultWindow)
	mergeStr(&dst.LogFile, src.LogFile)
	mergeStr(&dst.MarkerDir, src.MarkerDir)
}

// expandPaths resolves a leading ~ in every configured path.
func expandPaths(cfg *Config) {
	cfg.Backup.SourceDir = ExpandHome(cfg.Backup.SourceDir)
	cfg.Backup.DestDir = ExpandHome(cfg.Backup.DestDir)
	cfg.Handoff.LogFile = ExpandHome(cfg.Handoff.LogFile)
	cfg.Handoff.MarkerDir = ExpandHome(cfg.Handoff.MarkerDir)
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
