package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Content.MetadataFile != "metadata.yaml" {
		t.Errorf("expected metadata file metadata.yaml, got %s", cfg.Content.MetadataFile)
	}
	if cfg.Repo.Remote != "origin" {
		t.Errorf("expected remote origin, got %s", cfg.Repo.Remote)
	}
	if cfg.Docs.MinLength != 100 {
		t.Errorf("expected min length 100, got %d", cfg.Docs.MinLength)
	}
	if len(cfg.Detect.Denylist) == 0 {
		t.Error("expected a default denylist")
	}
	if cfg.Publish.NATSURL != "" {
		t.Error("expected publishing to be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing metadata file",
			modify:  func(c *Config) { c.Content.MetadataFile = "" },
			wantErr: true,
		},
		{
			name:    "doc file with directory",
			modify:  func(c *Config) { c.Content.DocFile = "docs/README.md" },
			wantErr: true,
		},
		{
			name:    "nested content root",
			modify:  func(c *Config) { c.Content.Roots = []string{"a/b"} },
			wantErr: true,
		},
		{
			name:    "content root with slashes trimmed",
			modify:  func(c *Config) { c.Content.Roots = []string{"/patterns/"} },
			wantErr: false,
		},
		{
			name:    "negative min length",
			modify:  func(c *Config) { c.Docs.MinLength = -1 },
			wantErr: true,
		},
		{
			name:    "negative workers",
			modify:  func(c *Config) { c.Pipeline.Workers = -2 },
			wantErr: true,
		},
		{
			name: "nats url without subject prefix",
			modify: func(c *Config) {
				c.Publish.NATSURL = "nats://localhost:4222"
				c.Publish.SubjectPrefix = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
repo:
  path: "/test/path"
  remote: upstream
content:
  roots: [patterns, guides]
detect:
  denylist: [".", "ci-*"]
docs:
  min_length: 250
schema:
  path: schema/custom.cue
reviewers:
  path: /etc/entrygate/reviewers.yaml
pipeline:
  workers: 4
  timeout: 10m
publish:
  nats_url: "nats://test:4222"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Repo.Path != "/test/path" {
		t.Errorf("expected repo path /test/path, got %s", cfg.Repo.Path)
	}
	if cfg.Repo.Remote != "upstream" {
		t.Errorf("expected remote upstream, got %s", cfg.Repo.Remote)
	}
	if len(cfg.Content.Roots) != 2 {
		t.Errorf("expected 2 content roots, got %d", len(cfg.Content.Roots))
	}
	if len(cfg.Detect.Denylist) != 2 {
		t.Errorf("expected 2 denylist items, got %d", len(cfg.Detect.Denylist))
	}
	if cfg.Docs.MinLength != 250 {
		t.Errorf("expected min length 250, got %d", cfg.Docs.MinLength)
	}
	if want := filepath.Join(tmpDir, "schema", "custom.cue"); cfg.Schema.Path != want {
		t.Errorf("expected schema path %s, got %s", want, cfg.Schema.Path)
	}
	if cfg.Reviewers.Path != "/etc/entrygate/reviewers.yaml" {
		t.Errorf("expected absolute reviewers path unchanged, got %s", cfg.Reviewers.Path)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.Timeout != 10*time.Minute {
		t.Errorf("expected timeout 10m, got %v", cfg.Pipeline.Timeout)
	}
	if cfg.Publish.NATSURL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.Publish.NATSURL)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Repo: RepoConfig{
			Path: "/override/path",
		},
		Detect: DetectConfig{
			Denylist: []string{"infra"},
		},
		Docs: DocsConfig{
			MinLength: 50,
		},
	}

	base.Merge(override)

	if base.Repo.Path != "/override/path" {
		t.Errorf("expected repo path /override/path, got %s", base.Repo.Path)
	}
	// Remote should remain from base since override didn't set it
	if base.Repo.Remote != "origin" {
		t.Errorf("expected remote to remain default, got %s", base.Repo.Remote)
	}
	if len(base.Detect.Denylist) != 1 || base.Detect.Denylist[0] != "infra" {
		t.Errorf("expected denylist [infra], got %v", base.Detect.Denylist)
	}
	if base.Docs.MinLength != 50 {
		t.Errorf("expected min length 50, got %d", base.Docs.MinLength)
	}
	if len(base.Docs.RecommendedSections) != 4 {
		t.Errorf("expected default sections to remain, got %v", base.Docs.RecommendedSections)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Repo.Remote = "saved-remote"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Repo.Remote != "saved-remote" {
		t.Errorf("expected remote saved-remote, got %s", loaded.Repo.Remote)
	}
}

func TestLoaderLayers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	userCfg := DefaultConfig()
	userCfg.Docs.MinLength = 42
	userCfg.Repo.Remote = "user-remote"
	if err := userCfg.SaveToFile(filepath.Join(home, UserConfigDir, UserConfigFile)); err != nil {
		t.Fatalf("write user config: %v", err)
	}

	project := t.TempDir()
	if _, err := git.PlainInit(project, false); err != nil {
		t.Fatalf("init repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("repo:\n  remote: project-remote\n"), 0644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	nested := filepath.Join(project, "patterns", "sample")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	explicit := filepath.Join(t.TempDir(), "ci.yaml")
	if err := os.WriteFile(explicit, []byte("pipeline:\n  workers: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(nil)
	l.SetWorkDir(nested)
	cfg, err := l.Load(explicit)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Docs.MinLength != 42 {
		t.Errorf("expected user min length 42, got %d", cfg.Docs.MinLength)
	}
	if cfg.Repo.Remote != "project-remote" {
		t.Errorf("expected project remote to win over user, got %s", cfg.Repo.Remote)
	}
	if cfg.Pipeline.Workers != 3 {
		t.Errorf("expected explicit workers 3, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Repo.Path != project {
		t.Errorf("expected detected repo root %s, got %s", project, cfg.Repo.Path)
	}
}

func TestLoaderExplicitMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	l := NewLoader(nil)
	l.SetWorkDir(t.TempDir())
	if _, err := l.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config")
	}
}
