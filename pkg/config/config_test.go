package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Backend.Family != FamilySDWebUI {
		t.Errorf("Expected default family sdwebui, got %q", cfg.Backend.Family)
	}
	if cfg.Backend.Attempts != 1 {
		t.Errorf("Expected no retries by default, got %d attempts", cfg.Backend.Attempts)
	}
	if len(cfg.Capture.Strategies) != 3 || cfg.Capture.Strategies[0] != "readback" {
		t.Errorf("Unexpected default strategies: %v", cfg.Capture.Strategies)
	}
	if cfg.Timeouts.Probe != 5*time.Second {
		t.Errorf("Expected 5s probe timeout, got %v", cfg.Timeouts.Probe)
	}
	if cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("Expected 24h cache TTL, got %v", cfg.Redis.TTL)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
backend:
  family: Gemini
  api_key: from-file
defaults:
  steps: 12
storage:
  root: ` + filepath.Join(dir, "data") + `
background:
  enabled: true
  algorithm: threshold
  threshold: 230
timeouts:
  probe: 2s
  capture_queue: 750ms
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCENE_EDIT_BACKEND_API_KEY", "from-env")
	t.Setenv("SCENE_EDIT_DEFAULTS_STRENGTH", "0.4")
	t.Setenv("SCENE_EDIT_EDIT_TIMEOUT", "45")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Backend.Family != FamilyGemini {
		t.Errorf("Expected normalized family gemini, got %q", cfg.Backend.Family)
	}
	if cfg.Backend.APIKey != "from-env" {
		t.Errorf("Expected environment to override the file, got %q", cfg.Backend.APIKey)
	}
	if cfg.Defaults.Steps != 12 || cfg.Defaults.Strength != 0.4 {
		t.Errorf("Unexpected defaults: %+v", cfg.Defaults)
	}
	if !cfg.Background.Enabled || cfg.Background.Algorithm != "threshold" || cfg.Background.Threshold != 230 {
		t.Errorf("Unexpected background config: %+v", cfg.Background)
	}
	if cfg.Timeouts.Probe != 2*time.Second || cfg.Timeouts.CaptureQueue != 750*time.Millisecond {
		t.Errorf("Expected timeouts from the file, got %+v", cfg.Timeouts)
	}
	if cfg.Timeouts.Edit != 45*time.Second {
		t.Errorf("Expected the edit timeout from the environment, got %v", cfg.Timeouts.Edit)
	}
	if cfg.Timeouts.MaxOperationTime != DefaultTimeouts().MaxOperationTime {
		t.Errorf("Expected the default operation age, got %v", cfg.Timeouts.MaxOperationTime)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("Expected storage root to be created: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		cfg.Storage.Root = t.TempDir()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown family", func(c *Config) { c.Backend.Family = "dalle" }},
		{"zero attempts", func(c *Config) { c.Backend.Attempts = 0 }},
		{"strength above one", func(c *Config) { c.Defaults.Strength = 1.5 }},
		{"unknown algorithm", func(c *Config) { c.Background.Algorithm = "magic" }},
		{"unknown server mode", func(c *Config) { c.Server.Mode = "grpc" }},
		{"empty viewport", func(c *Config) { c.Scene.Width = 0 }},
		{"unknown scene source", func(c *Config) { c.Scene.Source = "webgl" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadTimeouts(t *testing.T) {
	t.Setenv("SCENE_EDIT_EDIT_TIMEOUT", "45")
	t.Setenv("SCENE_EDIT_PROBE_TIMEOUT", "not-a-number")

	tc := LoadTimeouts()
	if tc.Edit != 45*time.Second {
		t.Errorf("Expected 45s edit timeout, got %v", tc.Edit)
	}
	if tc.Probe != DefaultTimeouts().Probe {
		t.Errorf("Expected invalid value to keep the default, got %v", tc.Probe)
	}
}
