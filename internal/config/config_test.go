package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("timezone: Europe/Berlin\nlanguage: de-DE\nproxy-url: http://127.0.0.1:8080\ndebug: true\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" || cfg.Language != "de-DE" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Debug || cfg.ProxyURL != "http://127.0.0.1:8080" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogDir != "logs" {
		t.Errorf("log dir = %q, want the default", cfg.LogDir)
	}
}

func TestLoadConfigOptionalMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("LoadConfigOptional() error = %v", err)
	}
	if cfg.Timezone != "Europe/London" || cfg.Language != "en-GB" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if _, err = LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Error("a missing required config must be an error")
	}
}
