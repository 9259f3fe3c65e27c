package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gosink/gosink/internal/artifact"
)

// Config represents the complete gosink configuration. It is immutable for
// the duration of a run; the run start timestamp fixes the quarantine
// directory name and log file name for the whole run.
type Config struct {
	Source       string `yaml:"source"`
	Target       string `yaml:"target"`
	MoveFolders  bool   `yaml:"move_folders"`
	SyncFiles    bool   `yaml:"sync_files"`
	Delete       bool   `yaml:"delete"`
	KeepVersions bool   `yaml:"keep_versions"`
	Checksum     bool   `yaml:"checksum"`
	DryRun       bool   `yaml:"dry_run"`
	Verbose      bool   `yaml:"verbose"`

	// StartTime is fixed once when the configuration is created.
	StartTime string `yaml:"-"`
}

// Default returns a configuration with default values and a fresh run
// timestamp. All feature toggles except checksum default to off.
func Default() *Config {
	return &Config{
		Checksum:  true,
		StartTime: time.Now().Format(artifact.StampLayout),
	}
}

// Load reads and parses the configuration file. Values absent from the file
// keep their defaults. The result is not validated; callers apply their own
// overrides first and then call Validate.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()

	return cfg, nil
}

// expandEnv expands environment variables in all path fields
func (c *Config) expandEnv() {
	c.Source = os.ExpandEnv(c.Source)
	c.Target = os.ExpandEnv(c.Target)
}

// Validate checks the configuration for errors. Both roots must exist as
// directories before the engine starts; the engine itself performs no
// path-existence validation beyond the root check in the tree walker.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source folder not specified")
	}
	if c.Target == "" {
		return fmt.Errorf("target folder not specified")
	}

	if info, err := os.Stat(c.Source); err != nil || !info.IsDir() {
		return fmt.Errorf("source folder not found: %s", c.Source)
	}
	if info, err := os.Stat(c.Target); err != nil || !info.IsDir() {
		return fmt.Errorf("target folder not found: %s", c.Target)
	}

	absSource, err := filepath.Abs(c.Source)
	if err != nil {
		return fmt.Errorf("failed to resolve source path: %w", err)
	}
	absTarget, err := filepath.Abs(c.Target)
	if err != nil {
		return fmt.Errorf("failed to resolve target path: %w", err)
	}
	if absSource == absTarget {
		return fmt.Errorf("source and target must be different folders")
	}
	if isNested(absSource, absTarget) {
		return fmt.Errorf("target folder must not be inside the source folder")
	}
	if isNested(absTarget, absSource) {
		return fmt.Errorf("source folder must not be inside the target folder")
	}

	if c.StartTime == "" {
		return fmt.Errorf("run start time not set")
	}

	return nil
}

// isNested returns true if child is located within (or equal to) parent.
func isNested(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// QuarantineDirName returns the name of this run's quarantine directory
// under the target root.
func (c *Config) QuarantineDirName() string {
	return artifact.QuarantineDirName(c.StartTime)
}

// LogFileName returns the name of this run's log file under the target root.
func (c *Config) LogFileName() string {
	return artifact.LogFileName(c.StartTime)
}

// String renders the configuration for the run log header.
func (c *Config) String() string {
	return fmt.Sprintf(
		"source=%q target=%q move_folders=%t sync_files=%t delete=%t keep_versions=%t checksum=%t dry_run=%t verbose=%t",
		c.Source, c.Target, c.MoveFolders, c.SyncFiles, c.Delete, c.KeepVersions, c.Checksum, c.DryRun, c.Verbose)
}
