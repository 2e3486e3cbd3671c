package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("explicit missing config path should fail")
	}
}

func TestLoadParsesAndExpands(t *testing.T) {
	t.Setenv("CARDLOOM_TEST_TTS_KEY", "secret-value")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
cache_dir = "` + filepath.Join(dir, "cache") + `"
output_dir = "` + filepath.Join(dir, "out") + `"

[tts]
api_key = "${CARDLOOM_TEST_TTS_KEY}"

[retry]
max_attempts = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TTS.APIKey != "secret-value" {
		t.Errorf("api_key env expansion failed: %q", cfg.TTS.APIKey)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	// Untouched sections keep defaults.
	if cfg.Query.Model != defaultQueryModel {
		t.Errorf("query.model = %q, want default", cfg.Query.Model)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"negative base delay", func(c *Config) { c.Retry.BaseDelaySeconds = -1 }},
		{"max below base", func(c *Config) { c.Retry.BaseDelaySeconds = 10; c.Retry.MaxDelaySeconds = 5 }},
		{"zero pace", func(c *Config) { c.Retry.PacePerSecond = 0 }},
		{"zero workers", func(c *Config) { c.Enrich.Workers = 0 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "yaml" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"empty cache dir", func(c *Config) { c.Paths.CacheDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize failed: %v", err)
			}
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{cfg.AudioDir(), cfg.ImageDir(), cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s missing after EnsureDirectories", d)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[retry]") {
		t.Error("sample config missing [retry] section")
	}
	if err := WriteSample(path); err == nil {
		t.Error("WriteSample should refuse to overwrite")
	}
}
