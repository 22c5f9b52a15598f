package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/qjebbs/go-jsons"
	"github.com/tidwall/jsonc"
)

const appName = "winnow"

// GlobalConfigPath returns the user-level configuration file path.
func GlobalConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, appName+".json")
}

func projectConfigPaths(workingDir string) []string {
	return []string{
		filepath.Join(workingDir, appName+".json"),
		filepath.Join(workingDir, "."+appName+".json"),
	}
}

// ConfigPaths returns every path considered by Load, lowest precedence
// first.
func ConfigPaths(workingDir string) []string {
	paths := make([]string, 0, 3)
	if global := GlobalConfigPath(); global != "" {
		paths = append(paths, global)
	}
	return append(paths, projectConfigPaths(workingDir)...)
}

// Load reads the global and project configuration layers, strips JSONC
// comments, merges them with later layers winning, and unmarshals the
// result. Missing files are fine; a [Config] zero value is a complete
// default configuration.
func Load(workingDir string) (*Config, error) {
	var blobs [][]byte
	for _, path := range ConfigPaths(workingDir) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		blobs = append(blobs, jsonc.ToJSON(data))
	}
	return loadFromBytes(blobs)
}

func loadFromBytes(blobs [][]byte) (*Config, error) {
	cfg := &Config{}
	if len(blobs) == 0 {
		return cfg, nil
	}
	inputs := make([]any, len(blobs))
	for i, b := range blobs {
		inputs[i] = b
	}
	merged, err := jsons.Merge(inputs...)
	if err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}
	if err := json.Unmarshal(merged, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.dedupeLists()
	return cfg, nil
}

// dedupeLists normalizes list fields after the merge appended the layers'
// entries.
func (c *Config) dedupeLists() {
	if c.Pruning == nil || c.Pruning.Tools == nil {
		return
	}
	c.Pruning.Tools.Allowed = sortedUnique(c.Pruning.Tools.Allowed)
	c.Pruning.Tools.Denied = sortedUnique(c.Pruning.Tools.Denied)
}

func sortedUnique(items []string) []string {
	if len(items) == 0 {
		return items
	}
	slices.Sort(items)
	return slices.Compact(items)
}

// DataDir returns the directory for logs and other mutable state.
func (c *Config) DataDir() string {
	if c != nil && c.Options != nil && c.Options.DataDirectory != "" {
		return c.Options.DataDirectory
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(dir, appName)
}

// LogPath returns the rotating log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir(), "logs", appName+".log")
}
