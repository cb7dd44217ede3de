// Package config provides configuration loading and management for storytrace.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/scan"
)

// FileName is the per-repository config file looked up by LoadFromRepo.
const FileName = ".storytrace.yaml"

// Config controls what the audit scans and how orphans are classified.
type Config struct {
	// Prefixes maps identifier prefixes to artifact type names
	// (e.g. "FT" -> "Feature"). Empty means the built-in registry.
	Prefixes map[string]string `yaml:"prefixes,omitempty"`

	// MinSourceLines is the size below which a source file without
	// traceability is too small to flag as an orphan.
	MinSourceLines int `yaml:"min_source_lines,omitempty"`

	// SourceExtensions lists the file extensions scanned as source code.
	SourceExtensions []string `yaml:"source_extensions,omitempty"`

	// TestFilePatterns lists the file-name globs treated as test files.
	TestFilePatterns []string `yaml:"test_file_patterns,omitempty"`

	// TestMarker is the substring marking a test file as story-decorated.
	TestMarker string `yaml:"test_marker,omitempty"`

	// TraceMarker is the decorator marker expected in source files.
	TraceMarker string `yaml:"trace_marker,omitempty"`

	// RespectGitignore excludes gitignored paths from scans. Unset means on.
	RespectGitignore *bool `yaml:"respect_gitignore,omitempty"`

	// ProjectID identifies the project in generated configs.
	ProjectID string `yaml:"project_id,omitempty"`
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Prefixes:         nil, // built-in registry
		MinSourceLines:   20,
		SourceExtensions: []string{".py", ".go", ".ts", ".tsx", ".js", ".jsx"},
		TestFilePatterns: []string{"test_*"},
		TestMarker:       scan.DefaultTestMarker,
		TraceMarker:      scan.DefaultTraceMarker,
	}
}

// GitignoreEnabled reports whether scans should honor .gitignore.
func (c *Config) GitignoreEnabled() bool {
	return c.RespectGitignore == nil || *c.RespectGitignore
}

// Grammar compiles the identifier grammar configured by Prefixes, or the
// default grammar when no prefixes are configured.
func (c *Config) Grammar() (*grammar.Grammar, error) {
	if len(c.Prefixes) == 0 {
		return grammar.Default(), nil
	}
	return grammar.New(grammar.Config{Prefixes: c.Prefixes})
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MinSourceLines < 0 {
		return fmt.Errorf("min_source_lines must not be negative")
	}
	if c.TestMarker == "" {
		return fmt.Errorf("test_marker is required")
	}
	if c.TraceMarker == "" {
		return fmt.Errorf("trace_marker is required")
	}
	if _, err := c.Grammar(); err != nil {
		return fmt.Errorf("invalid prefixes: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromRepo loads root/.storytrace.yaml, falling back to defaults when
// the repository has no config file.
func LoadFromRepo(root string) (*Config, error) {
	return Load(filepath.Join(root, FileName))
}

// Save writes the configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one. Set values in other take
// precedence; zero values leave the receiver untouched.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if len(other.Prefixes) > 0 {
		c.Prefixes = other.Prefixes
	}
	if other.MinSourceLines != 0 {
		c.MinSourceLines = other.MinSourceLines
	}
	if len(other.SourceExtensions) > 0 {
		c.SourceExtensions = other.SourceExtensions
	}
	if len(other.TestFilePatterns) > 0 {
		c.TestFilePatterns = other.TestFilePatterns
	}
	if other.TestMarker != "" {
		c.TestMarker = other.TestMarker
	}
	if other.TraceMarker != "" {
		c.TraceMarker = other.TraceMarker
	}
	if other.RespectGitignore != nil {
		c.RespectGitignore = other.RespectGitignore
	}
	if other.ProjectID != "" {
		c.ProjectID = other.ProjectID
	}
}
