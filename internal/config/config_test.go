package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MinSourceLines != 20 {
		t.Errorf("MinSourceLines = %d, want 20", cfg.MinSourceLines)
	}
	if cfg.TestMarker != "@allure" || cfg.TraceMarker != "@trace" {
		t.Errorf("markers = %q/%q, want @allure/@trace", cfg.TestMarker, cfg.TraceMarker)
	}
	if !cfg.GitignoreEnabled() {
		t.Error("gitignore should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinSourceLines != 20 {
		t.Errorf("MinSourceLines = %d, want default 20", cfg.MinSourceLines)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := strings.Join([]string{
		"min_source_lines: 50",
		"source_extensions: [.rs]",
		"respect_gitignore: false",
		"prefixes:",
		"  REQ: Requirement",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinSourceLines != 50 {
		t.Errorf("MinSourceLines = %d, want 50", cfg.MinSourceLines)
	}
	if len(cfg.SourceExtensions) != 1 || cfg.SourceExtensions[0] != ".rs" {
		t.Errorf("SourceExtensions = %v, want [.rs]", cfg.SourceExtensions)
	}
	if cfg.GitignoreEnabled() {
		t.Error("respect_gitignore: false should disable gitignore")
	}
	// Unset fields keep their defaults.
	if cfg.TestMarker != "@allure" {
		t.Errorf("TestMarker = %q, want default @allure", cfg.TestMarker)
	}

	g, err := cfg.Grammar()
	if err != nil {
		t.Fatalf("Grammar: %v", err)
	}
	if !g.MatchString("REQ-001") {
		t.Error("configured prefix REQ should match REQ-001")
	}
	if g.MatchString("FT-001") {
		t.Error("custom registry should replace the built-in prefixes")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("min_source_lines: [not an int\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestSaveAndLoadFromRepo(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.ProjectID = "3f6c1dbe-8a07-4a52-9c3e-2f5a7b9d1e04"
	cfg.MinSourceLines = 10

	if err := cfg.Save(filepath.Join(root, FileName)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFromRepo(root)
	if err != nil {
		t.Fatalf("LoadFromRepo: %v", err)
	}
	if loaded.ProjectID != cfg.ProjectID {
		t.Errorf("ProjectID = %q, want %q", loaded.ProjectID, cfg.ProjectID)
	}
	if loaded.MinSourceLines != 10 {
		t.Errorf("MinSourceLines = %d, want 10", loaded.MinSourceLines)
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	off := false
	base.Merge(&Config{
		MinSourceLines:   5,
		TestMarker:       "@story",
		RespectGitignore: &off,
	})

	if base.MinSourceLines != 5 {
		t.Errorf("MinSourceLines = %d, want 5", base.MinSourceLines)
	}
	if base.TestMarker != "@story" {
		t.Errorf("TestMarker = %q, want @story", base.TestMarker)
	}
	if base.GitignoreEnabled() {
		t.Error("merge should carry gitignore off")
	}
	// Untouched fields survive.
	if base.TraceMarker != "@trace" {
		t.Errorf("TraceMarker = %q, want @trace", base.TraceMarker)
	}

	base.Merge(nil)
	if base.MinSourceLines != 5 {
		t.Error("merging nil must be a no-op")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cfg := Default()
	cfg.MinSourceLines = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative min_source_lines")
	}

	cfg = Default()
	cfg.TestMarker = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty test_marker")
	}

	cfg = Default()
	cfg.Prefixes = map[string]string{"bad-prefix": "Nope"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid prefix")
	}
}
