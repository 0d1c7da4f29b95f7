package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8000
log:
  log_level: "debug"
  log_dir: "/tmp/logs"
  log_file: "test.log"
auth:
  baseline_threshold: 0.8
  jwt_secret: "test-secret"
advisory:
  enabled: true
  driver: "http"
  timeout: 2s
  http:
    url: "http://127.0.0.1:9999/assess"
binding:
  store:
    type: "memory"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader().WithDotEnv(false).WithPath(configFile)
	result, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg := result.Config

	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Auth.BaselineThreshold != 0.8 {
		t.Errorf("expected baseline threshold 0.8, got %f", cfg.Auth.BaselineThreshold)
	}
	if cfg.Advisory.Timeout != 2*time.Second {
		t.Errorf("expected advisory timeout 2s, got %v", cfg.Advisory.Timeout)
	}
	if cfg.Binding.Store.Type != "memory" {
		t.Errorf("expected memory binding store, got %s", cfg.Binding.Store.Type)
	}
	// Values the file does not set fall back to defaults.
	if cfg.Auth.AbsoluteFloor != 0.60 {
		t.Errorf("expected default absolute floor 0.60, got %f", cfg.Auth.AbsoluteFloor)
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "absent.yaml"))
	result, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if result.Path != "defaults" {
		t.Errorf("expected defaults origin, got %s", result.Path)
	}
	if result.Config.Auth.BaselineThreshold != 0.75 {
		t.Errorf("expected default baseline 0.75, got %f", result.Config.Auth.BaselineThreshold)
	}
	if result.Config.Advisory.Timeout != 5*time.Second {
		t.Errorf("expected default advisory timeout 5s, got %v", result.Config.Advisory.Timeout)
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("VOICEGATE_JWT_SECRET", "env-secret")
	t.Setenv("VOICEGATE_ADVISORY_ENABLED", "false")

	loader := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "absent.yaml"))
	result, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if result.Config.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected env jwt secret, got %q", result.Config.Auth.JWTSecret)
	}
	if result.Config.Advisory.Enabled {
		t.Error("expected advisory disabled via env")
	}
}

func TestNormalize_ClampsTuning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.BaselineThreshold = 1.7
	cfg.Auth.AdvisoryBand = 0.5
	cfg.Advisory.Timeout = -time.Second

	normalize(cfg)

	if cfg.Auth.BaselineThreshold != 0.75 {
		t.Errorf("expected baseline reset to 0.75, got %f", cfg.Auth.BaselineThreshold)
	}
	if cfg.Auth.AdvisoryBand != 0.05 {
		t.Errorf("expected band reset to 0.05, got %f", cfg.Auth.AdvisoryBand)
	}
	if cfg.Advisory.Timeout != 5*time.Second {
		t.Errorf("expected timeout reset to 5s, got %v", cfg.Advisory.Timeout)
	}
}
