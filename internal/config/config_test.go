package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "EXPLAINER_API_URL", "LOG_LEVEL", "OUTPUT_DIR", "EXCLUDE_DIRS",
		"METRICS_PORT", "NATS_URL", "NATS_SUBJECT", "BREAKER_ENABLED",
		"BREAKER_MIN_REQUESTS", "BREAKER_OPEN_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "http://localhost:8000" {
		t.Fatalf("expected default api url, got %q", cfg.APIURL)
	}
	if cfg.OutputDir != "." {
		t.Fatalf("expected default output dir, got %q", cfg.OutputDir)
	}
	if !reflect.DeepEqual(cfg.ExcludeDirs, []string{"node_modules", ".git", "dist", "build", "__pycache__"}) {
		t.Fatalf("unexpected exclude dirs %v", cfg.ExcludeDirs)
	}
	if !cfg.BreakerEnabled || cfg.BreakerMinRequests != 3 || cfg.BreakerOpenTimeoutSeconds != 30 {
		t.Fatalf("unexpected breaker defaults %+v", cfg)
	}
	if cfg.NATSURL != "" || cfg.NATSSubject != "uploader.events" {
		t.Fatalf("unexpected nats defaults %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPLAINER_API_URL", "https://explainer.example.com/")
	t.Setenv("EXCLUDE_DIRS", " vendor , ,.git")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("BREAKER_MIN_REQUESTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "https://explainer.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if !reflect.DeepEqual(cfg.ExcludeDirs, []string{"vendor", ".git"}) {
		t.Fatalf("unexpected exclude dirs %v", cfg.ExcludeDirs)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.BreakerMinRequests != 3 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.BreakerMinRequests)
	}
}

func TestLoadFileEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "uploader.yaml")
	profile := []byte("api_url: http://file:9000\noutput_dir: /tmp/out\nnats_url: nats://file:4222\nbreaker_min_requests: 5\n")
	if err := os.WriteFile(path, profile, 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OUTPUT_DIR", "/srv/artifacts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "http://file:9000" {
		t.Fatalf("expected api url from file, got %q", cfg.APIURL)
	}
	if cfg.OutputDir != "/srv/artifacts" {
		t.Fatalf("expected env to override file, got %q", cfg.OutputDir)
	}
	if cfg.NATSURL != "nats://file:4222" || cfg.BreakerMinRequests != 5 {
		t.Fatalf("unexpected file values %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level to survive, got %q", cfg.LogLevel)
	}
}

func TestLoadFileRejectsInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("api_url: [unterminated"), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
