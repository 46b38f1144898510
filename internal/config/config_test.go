package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefault(t *testing.T) {
	t.Setenv(EnvIncludeBody, "")
	t.Setenv(EnvIncludeDocstrings, "")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.EffectiveIncludeBody() || !cfg.EffectiveIncludeDocstrings() {
		t.Error("capture toggles should default to true")
	}
	if cfg.EffectiveWorkers() < 1 {
		t.Errorf("workers = %d", cfg.EffectiveWorkers())
	}
	if cfg.EffectiveIndexVersion() != DefaultIndexVersion {
		t.Errorf("index version = %q", cfg.EffectiveIndexVersion())
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv(EnvIncludeBody, "")
	t.Setenv(EnvIncludeDocstrings, "")
	dir := t.TempDir()
	content := `
include_body: false
ignore:
  - vendor_py/
  - "*.generated.py"
ignore_file: .indexignore
workers: 3
max_file_size: 1048576
output: index.json
index_version: "2.1"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EffectiveIncludeBody() {
		t.Error("include_body should be false")
	}
	if !cfg.EffectiveIncludeDocstrings() {
		t.Error("include_docstrings should default to true")
	}
	if len(cfg.Ignore) != 2 || cfg.Ignore[1] != "*.generated.py" {
		t.Errorf("ignore = %v", cfg.Ignore)
	}
	if cfg.IgnoreFile != ".indexignore" {
		t.Errorf("ignore_file = %q", cfg.IgnoreFile)
	}
	if cfg.EffectiveWorkers() != 3 || cfg.MaxFileSize != 1048576 || cfg.Output != "index.json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.EffectiveIndexVersion() != "2.1" {
		t.Errorf("index version = %q", cfg.EffectiveIndexVersion())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("workers: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("include_body: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvIncludeBody, "false")
	t.Setenv(EnvIncludeDocstrings, "no")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EffectiveIncludeBody() {
		t.Error("environment should override the file")
	}
	if cfg.EffectiveIncludeDocstrings() {
		t.Error("INCLUDE_DOCSTRINGS=no should disable docstrings")
	}

	t.Setenv(EnvIncludeBody, "maybe")
	if _, err := Load(dir); err == nil {
		t.Error("expected error for unparseable boolean")
	}
}

func TestFlagsOverrideEverything(t *testing.T) {
	t.Setenv(EnvIncludeBody, "1")
	t.Setenv(EnvIncludeDocstrings, "")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.DisableBody()
	cfg.DisableDocstrings()
	if cfg.EffectiveIncludeBody() || cfg.EffectiveIncludeDocstrings() {
		t.Errorf("flags did not disable capture: %+v", cfg)
	}
}
