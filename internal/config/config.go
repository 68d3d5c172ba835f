// Package config loads Warren configuration: store roots from the
// environment and the optional warren.yml collaborator bindings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the well-known config file name in the working directory
	DefaultConfigFile = "warren.yml"

	// DefaultIssuesDir is the open store root when no override is set
	DefaultIssuesDir = ".warren/issues"

	// DefaultArchiveDir is the archive store root when no override is set
	DefaultArchiveDir = ".warren/archive"

	// EnvIssuesDir overrides the open store root
	EnvIssuesDir = "WARREN_ISSUES_DIR"

	// EnvArchiveDir overrides the archive store root
	EnvArchiveDir = "WARREN_ARCHIVE_DIR"

	// DefaultStageTimeout bounds a single collaborator subprocess run
	DefaultStageTimeout = 5 * time.Minute
)

// stageNames are the pipeline stages a warren.yml must bind collaborators
// for, in canonical order.
var stageNames = []string{"validation", "proposal", "review", "implementation", "verification", "finalization"}

// Config represents the top-level warren.yml configuration.
type Config struct {
	Version string                 `yaml:"version"`
	Stores  *StoresConfig          `yaml:"stores,omitempty"`
	Stages  map[string]StageConfig `yaml:"stages,omitempty"`
}

// StoresConfig allows overriding the store roots from the config file.
// Environment variables take precedence over these values.
type StoresConfig struct {
	Issues  string `yaml:"issues,omitempty"`
	Archive string `yaml:"archive,omitempty"`
}

// StageConfig binds one pipeline stage to its collaborator command.
type StageConfig struct {
	Command []string `yaml:"command"`
	Timeout string   `yaml:"timeout,omitempty"` // Go duration, default 5m
}

// Load reads and validates a warren.yml. A missing file is not an error: it
// yields a default config with no stage bindings, which is enough for the
// listing and archive commands.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Version: "1.0"}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Stage bindings are all-or-nothing: a partial pipeline cannot run
	if len(c.Stages) > 0 {
		for _, name := range stageNames {
			stage, ok := c.Stages[name]
			if !ok {
				return fmt.Errorf("stage %q is not bound (all of %v are required)", name, stageNames)
			}
			if err := stage.Validate(name); err != nil {
				return err
			}
		}
		for name := range c.Stages {
			if !isKnownStage(name) {
				return fmt.Errorf("unknown stage %q in stages section", name)
			}
		}
	}

	return nil
}

// Validate performs validation on a single stage binding.
func (s *StageConfig) Validate(name string) error {
	if len(s.Command) == 0 {
		return fmt.Errorf("stage %q: command is required", name)
	}
	if s.Timeout != "" {
		if _, err := time.ParseDuration(s.Timeout); err != nil {
			return fmt.Errorf("stage %q: invalid timeout: %w", name, err)
		}
	}
	return nil
}

// StageTimeout returns the stage's collaborator timeout, falling back to the
// default. Call only after Validate.
func (s *StageConfig) StageTimeout() time.Duration {
	if s.Timeout == "" {
		return DefaultStageTimeout
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return DefaultStageTimeout
	}
	return d
}

func isKnownStage(name string) bool {
	for _, known := range stageNames {
		if name == known {
			return true
		}
	}
	return false
}

// IssuesRoot resolves the open store root: environment override first, then
// the config file, then the default relative path.
func (c *Config) IssuesRoot() string {
	if dir := os.Getenv(EnvIssuesDir); dir != "" {
		return dir
	}
	if c.Stores != nil && c.Stores.Issues != "" {
		return c.Stores.Issues
	}
	return DefaultIssuesDir
}

// ArchiveRoot resolves the archive store root with the same precedence.
func (c *Config) ArchiveRoot() string {
	if dir := os.Getenv(EnvArchiveDir); dir != "" {
		return dir
	}
	if c.Stores != nil && c.Stores.Archive != "" {
		return c.Stores.Archive
	}
	return DefaultArchiveDir
}
