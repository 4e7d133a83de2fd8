package config

import (
	"fmt"
	"os"
	"strconv"
)

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.ccsync/config.yaml"
	SourceProject Source = ".ccsync/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// Resolved is a single config value paired with the layer that set it.
type Resolved struct {
	Key    string `json:"key" yaml:"key"`
	Value  string `json:"value" yaml:"value"`
	Source Source `json:"source" yaml:"source"`
}

// getEnvString returns the value and whether the env var was set.
func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// getEnvBool returns the boolean value and whether it was truthy.
func getEnvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "true" || v == "1" {
		return true, true
	}
	return false, false
}

// resolveStringField resolves a string through the precedence chain.
func resolveStringField(key, home, project, env, flag, def string) Resolved {
	result := Resolved{Key: key, Value: def, Source: SourceDefault}
	if home != "" {
		result = Resolved{Key: key, Value: home, Source: SourceHome}
	}
	if project != "" {
		result = Resolved{Key: key, Value: project, Source: SourceProject}
	}
	if env != "" {
		result = Resolved{Key: key, Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = Resolved{Key: key, Value: flag, Source: SourceFlag}
	}
	return result
}

// layerFields flattens the scalar settings of one config layer into strings.
// Zero values come back empty so they do not claim precedence.
func layerFields(c *Config) map[string]string {
	out := map[string]string{}
	if c == nil {
		return out
	}
	out["output"] = c.Output
	if c.Verbose {
		out["verbose"] = "true"
	}
	out["backup.source_dir"] = c.Backup.SourceDir
	out["backup.dest_dir"] = c.Backup.DestDir
	if c.Backup.Workers != 0 {
		out["backup.workers"] = strconv.Itoa(c.Backup.Workers)
	}
	if c.Backup.Commit {
		out["backup.commit"] = "true"
	}
	if c.Handoff.ThresholdPercent != 0 {
		out["handoff.threshold_percent"] = strconv.Itoa(c.Handoff.ThresholdPercent)
	}
	if c.Handoff.DefaultWindow != 0 {
		out["handoff.default_window"] = strconv.Itoa(c.Handoff.DefaultWindow)
	}
	out["handoff.log_file"] = c.Handoff.LogFile
	out["handoff.marker_dir"] = c.Handoff.MarkerDir
	return out
}

func envFields() map[string]string {
	out := map[string]string{}
	for key, env := range map[string]string{
		"output":                    "CCSYNC_OUTPUT",
		"backup.source_dir":         "CCSYNC_SOURCE_DIR",
		"backup.dest_dir":           "CCSYNC_DEST_DIR",
		"backup.workers":            "CCSYNC_WORKERS",
		"handoff.threshold_percent": "CCSYNC_HANDOFF_THRESHOLD",
		"handoff.log_file":          "CCSYNC_HANDOFF_LOG",
		"handoff.marker_dir":        "CCSYNC_HANDOFF_MARKER_DIR",
	} {
		if v, ok := getEnvString(env); ok {
			out[key] = v
		}
	}
	if v, ok := getEnvBool("CCSYNC_VERBOSE"); ok && v {
		out["verbose"] = "true"
	}
	if v, ok := getEnvBool("CCSYNC_COMMIT"); ok && v {
		out["backup.commit"] = "true"
	}
	return out
}

// ResolvedKeys lists the keys reported by Resolve, in display order.
var ResolvedKeys = []string{
	"output",
	"verbose",
	"backup.source_dir",
	"backup.dest_dir",
	"backup.workers",
	"backup.commit",
	"handoff.threshold_percent",
	"handoff.default_window",
	"handoff.log_file",
	"handoff.marker_dir",
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flags *Config) ([]Resolved, error) {
	homeConfig, err := loadFromPath(homeConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("home config: %w", err)
	}
	projectConfig, err := loadFromPath(projectConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("project config: %w", err)
	}

	def := layerFields(Default())
	def["verbose"] = "false"
	def["backup.commit"] = "false"
	home := layerFields(homeConfig)
	project := layerFields(projectConfig)
	env := envFields()
	flag := layerFields(flags)

	out := make([]Resolved, 0, len(ResolvedKeys))
	for _, key := range ResolvedKeys {
		r := resolveStringField(key, home[key], project[key], env[key], flag[key], def[key])
		if key == "backup.source_dir" || key == "backup.dest_dir" || key == "handoff.log_file" || key == "handoff.marker_dir" {
			r.Value = ExpandHome(r.Value)
		}
		out = append(out, r)
	}
	return out, nil
}
