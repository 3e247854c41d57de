package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roundcast.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithEnvBaseURL(t *testing.T) {
	t.Setenv("ROUNDCAST_CONFIG", "")
	t.Setenv("ROUNDCAST_UPSTREAM_BASE_URL", "http://feed.local")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clients.Upstream.BaseURL != "http://feed.local" {
		t.Fatalf("unexpected base url %q", cfg.Clients.Upstream.BaseURL)
	}
	if cfg.History.Capacity != 100 {
		t.Fatalf("expected default capacity 100, got %d", cfg.History.Capacity)
	}
	if cfg.Prediction.Strategy != "cascade" {
		t.Fatalf("expected default strategy cascade, got %q", cfg.Prediction.Strategy)
	}
	if cfg.Server.HTTPAddress != ":8000" {
		t.Fatalf("unexpected http address %q", cfg.Server.HTTPAddress)
	}
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  httpAddress: ":9000"
  corsOrigins: ["https://a.example"]
clients:
  upstream:
    baseURL: http://from-yaml
    timeout: 3s
history:
  capacity: 50
prediction:
  strategy: Dice-Parity
cache:
  enabled: true
  backend: memory
  latestTTL: 1s
ingest:
  enabled: true
  schedule: "@every 2s"
`)
	t.Setenv("ROUNDCAST_HTTP_ADDRESS", ":9100")
	t.Setenv("ROUNDCAST_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ROUNDCAST_HISTORY_CAPACITY", "25")
	t.Setenv("ROUNDCAST_CACHE_LATEST_TTL", "750ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9100" {
		t.Fatalf("env override not applied, got %q", cfg.Server.HTTPAddress)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins); diff != "" {
		t.Fatalf("cors origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Clients.Upstream.BaseURL != "http://from-yaml" || cfg.Clients.Upstream.Timeout != 3*time.Second {
		t.Fatalf("unexpected upstream config %+v", cfg.Clients.Upstream)
	}
	if cfg.Clients.Upstream.LatestPath != "/api/taixiu/latest" {
		t.Fatalf("default latest path lost, got %q", cfg.Clients.Upstream.LatestPath)
	}
	if cfg.History.Capacity != 25 {
		t.Fatalf("expected capacity 25, got %d", cfg.History.Capacity)
	}
	if cfg.Prediction.Strategy != "dice-parity" {
		t.Fatalf("strategy not normalised, got %q", cfg.Prediction.Strategy)
	}
	if cfg.Cache.LatestTTL != 750*time.Millisecond {
		t.Fatalf("expected latest ttl 750ms, got %s", cfg.Cache.LatestTTL)
	}
	if !cfg.Ingest.Enabled || cfg.Ingest.Schedule != "@every 2s" {
		t.Fatalf("unexpected ingest config %+v", cfg.Ingest)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
history:
  capacity: 0
cache:
  enabled: true
  backend: valkey
`)
	t.Setenv("ROUNDCAST_UPSTREAM_BASE_URL", "")

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"baseURL", "history.capacity", "cache.addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidateUnknownCacheBackend(t *testing.T) {
	cfg := defaultConfig()
	cfg.Clients.Upstream.BaseURL = "http://feed"
	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	cfg.Cache.Backend = CacheBackendValkey
	cfg.Cache.Addr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
