// Package config provides configuration loading and management for entrygate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete entrygate configuration
type Config struct {
	Repo      RepoConfig      `yaml:"repo"`
	Content   ContentConfig   `yaml:"content"`
	Detect    DetectConfig    `yaml:"detect"`
	Docs      DocsConfig      `yaml:"docs"`
	Schema    SchemaConfig    `yaml:"schema"`
	Reviewers ReviewersConfig `yaml:"reviewers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Publish   PublishConfig   `yaml:"publish"`
}

// RepoConfig configures the repository settings
type RepoConfig struct {
	// Path is the repository root path (auto-detected from git if empty)
	Path string `yaml:"path"`
	// Remote is fetched from when a revision is missing locally
	Remote string `yaml:"remote"`
}

// ContentConfig describes where entries live and what they contain
type ContentConfig struct {
	// Roots are top-level directories whose children are entries
	Roots        []string `yaml:"roots"`
	MetadataFile string   `yaml:"metadata_file"`
	DocFile      string   `yaml:"doc_file"`
	AssetsDir    string   `yaml:"assets_dir"`
}

// DetectConfig configures change detection
type DetectConfig struct {
	// Denylist excludes first path segments (prefixes, or doublestar globs)
	Denylist []string `yaml:"denylist"`
}

// DocsConfig configures the documentation heuristics
type DocsConfig struct {
	MinLength           int      `yaml:"min_length"`
	RecommendedSections []string `yaml:"recommended_sections"`
	Placeholders        []string `yaml:"placeholders"`
}

// SchemaConfig locates the metadata schema document
type SchemaConfig struct {
	// Path is a CUE schema document; empty uses the built-in one
	Path string `yaml:"path"`
}

// ReviewersConfig locates the reviewer routing table
type ReviewersConfig struct {
	// Path is a mapping file; empty uses the built-in mapping
	Path string `yaml:"path"`
}

// PipelineConfig configures pipeline execution
type PipelineConfig struct {
	// Workers bounds parallel entry processing (0 = number of CPUs)
	Workers int `yaml:"workers"`
	// Timeout bounds a whole run
	Timeout time.Duration `yaml:"timeout"`
}

// PublishConfig configures result publication
type PublishConfig struct {
	// NATSURL enables publishing when set
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Repo: RepoConfig{
			Path:   "", // Auto-detect
			Remote: "origin",
		},
		Content: ContentConfig{
			MetadataFile: "metadata.yaml",
			DocFile:      "README.md",
			AssetsDir:    "assets",
		},
		Detect: DetectConfig{
			Denylist: []string{".", "_", "scripts", "templates", "schema", "tools", "docs"},
		},
		Docs: DocsConfig{
			MinLength:           100,
			RecommendedSections: []string{"Overview", "Architecture", "Implementation", "Prerequisites"},
			Placeholders:        []string{"TODO", "TBD", "Lorem ipsum", "[placeholder]"},
		},
		Pipeline: PipelineConfig{
			Workers: 0,
			Timeout: 5 * time.Minute,
		},
		Publish: PublishConfig{
			SubjectPrefix: "entrygate.results",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"content.metadata_file", c.Content.MetadataFile},
		{"content.doc_file", c.Content.DocFile},
		{"content.assets_dir", c.Content.AssetsDir},
	} {
		if f.value == "" {
			return fmt.Errorf("%s is required", f.name)
		}
		if strings.ContainsAny(f.value, `/\`) {
			return fmt.Errorf("%s must be a name inside the entry, got %q", f.name, f.value)
		}
	}
	for _, root := range c.Content.Roots {
		if strings.Trim(root, "/") == "" || strings.Contains(strings.Trim(root, "/"), "/") {
			return fmt.Errorf("content.roots: %q must be a single top-level directory", root)
		}
	}
	if c.Docs.MinLength < 0 {
		return fmt.Errorf("docs.min_length must not be negative")
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative")
	}
	if c.Pipeline.Timeout < 0 {
		return fmt.Errorf("pipeline.timeout must not be negative")
	}
	if c.Publish.NATSURL != "" && c.Publish.SubjectPrefix == "" {
		return fmt.Errorf("publish.subject_prefix is required when publish.nats_url is set")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. Unset fields stay zero so
// the result can be merged onto another layer.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Relative file references resolve against the config file's directory.
	dir := filepath.Dir(path)
	config.Schema.Path = resolvePath(dir, config.Schema.Path)
	config.Reviewers.Path = resolvePath(dir, config.Reviewers.Path)

	return config, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Repo
	if other.Repo.Path != "" {
		c.Repo.Path = other.Repo.Path
	}
	if other.Repo.Remote != "" {
		c.Repo.Remote = other.Repo.Remote
	}

	// Content
	if len(other.Content.Roots) > 0 {
		c.Content.Roots = other.Content.Roots
	}
	if other.Content.MetadataFile != "" {
		c.Content.MetadataFile = other.Content.MetadataFile
	}
	if other.Content.DocFile != "" {
		c.Content.DocFile = other.Content.DocFile
	}
	if other.Content.AssetsDir != "" {
		c.Content.AssetsDir = other.Content.AssetsDir
	}

	// Detect
	if len(other.Detect.Denylist) > 0 {
		c.Detect.Denylist = other.Detect.Denylist
	}

	// Docs
	if other.Docs.MinLength != 0 {
		c.Docs.MinLength = other.Docs.MinLength
	}
	if len(other.Docs.RecommendedSections) > 0 {
		c.Docs.RecommendedSections = other.Docs.RecommendedSections
	}
	if len(other.Docs.Placeholders) > 0 {
		c.Docs.Placeholders = other.Docs.Placeholders
	}

	// Schema and reviewers
	if other.Schema.Path != "" {
		c.Schema.Path = other.Schema.Path
	}
	if other.Reviewers.Path != "" {
		c.Reviewers.Path = other.Reviewers.Path
	}

	// Pipeline
	if other.Pipeline.Workers != 0 {
		c.Pipeline.Workers = other.Pipeline.Workers
	}
	if other.Pipeline.Timeout != 0 {
		c.Pipeline.Timeout = other.Pipeline.Timeout
	}

	// Publish
	if other.Publish.NATSURL != "" {
		c.Publish.NATSURL = other.Publish.NATSURL
	}
	if other.Publish.SubjectPrefix != "" {
		c.Publish.SubjectPrefix = other.Publish.SubjectPrefix
	}
}
