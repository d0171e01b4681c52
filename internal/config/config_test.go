package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigDir lays out a temp project root with a config/ directory and
// chdirs into it for the duration of the test.
func writeConfigDir(t *testing.T, devYAML, secretsYAML string) {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "config"), 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "config", "dev.yaml"), []byte(devYAML), 0o644); err != nil {
		t.Fatalf("write dev.yaml: %v", err)
	}
	if secretsYAML != "" {
		if err := os.WriteFile(filepath.Join(root, "config", "secrets.yaml"), []byte(secretsYAML), 0o644); err != nil {
			t.Fatalf("write secrets.yaml: %v", err)
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

// TestLoad_Defaults verifies the defaults applied over a minimal file.
func TestLoad_Defaults(t *testing.T) {
	writeConfigDir(t, "server:\n  port: \"9090\"\n", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-12345")
	t.Setenv("ENV_NAME", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("DATABASE_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.DeltaMultiplier != 1 {
		t.Errorf("DeltaMultiplier = %v, want 1", cfg.DeltaMultiplier)
	}
	if cfg.DatabasePath != "users.db" {
		t.Errorf("DatabasePath = %q, want users.db", cfg.DatabasePath)
	}
	if cfg.SeedCount != 5 {
		t.Errorf("SeedCount = %d, want 5", cfg.SeedCount)
	}
	if cfg.CityMinLength != 1 || cfg.CityMaxLength != 100 {
		t.Errorf("city length bounds = %d..%d, want 1..100", cfg.CityMinLength, cfg.CityMaxLength)
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		t.Errorf("RequestTimeout %v must exceed WeatherAPITimeout %v", cfg.RequestTimeout, cfg.WeatherAPITimeout)
	}
}

// TestLoad_FileValues verifies YAML values override the defaults.
func TestLoad_FileValues(t *testing.T) {
	writeConfigDir(t, `
cache:
  ttl: 90s
reliability:
  retry_max_attempts: 5
  rate_limit_rps: 10
  rate_limit_burst: 20
balance:
  delta_multiplier: 2.5
database:
  path: custom.db
  seed_users: true
  seed_count: 7
`, "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-12345")
	t.Setenv("ENV_NAME", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("DATABASE_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if cfg.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.RetryAttempts)
	}
	if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 {
		t.Errorf("rate limit = %d/%d, want 10/20", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.DeltaMultiplier != 2.5 {
		t.Errorf("DeltaMultiplier = %v, want 2.5", cfg.DeltaMultiplier)
	}
	if cfg.DatabasePath != "custom.db" {
		t.Errorf("DatabasePath = %q, want custom.db", cfg.DatabasePath)
	}
	if !cfg.SeedUsers || cfg.SeedCount != 7 {
		t.Errorf("seed = %v/%d, want true/7", cfg.SeedUsers, cfg.SeedCount)
	}
}

// TestLoad_SecretsFile verifies the API key falls back to secrets.yaml.
func TestLoad_SecretsFile(t *testing.T) {
	writeConfigDir(t, "server:\n  port: \"8080\"\n", "weather_api_key: from-secrets-file\n")
	t.Setenv("WEATHER_API_KEY", "")
	t.Setenv("ENV_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "from-secrets-file" {
		t.Errorf("WeatherAPIKey = %q, want from-secrets-file", cfg.WeatherAPIKey)
	}
}

// TestLoad_MissingAPIKey verifies a missing key is an error.
func TestLoad_MissingAPIKey(t *testing.T) {
	writeConfigDir(t, "server:\n  port: \"8080\"\n", "")
	t.Setenv("WEATHER_API_KEY", "")
	t.Setenv("ENV_NAME", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want missing key error")
	}
}

// TestLoad_BadCacheBackend verifies an unknown backend is rejected.
func TestLoad_BadCacheBackend(t *testing.T) {
	writeConfigDir(t, "cache:\n  backend: redis\n", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-12345")
	t.Setenv("ENV_NAME", "")
	t.Setenv("CACHE_BACKEND", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want backend error")
	}
}

// TestLoad_EnvOverrides verifies CACHE_BACKEND and DATABASE_PATH env take
// precedence over the file.
func TestLoad_EnvOverrides(t *testing.T) {
	writeConfigDir(t, "cache:\n  backend: in_memory\ndatabase:\n  path: file.db\n", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-12345")
	t.Setenv("ENV_NAME", "")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("DATABASE_PATH", "/tmp/env.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.DatabasePath != "/tmp/env.db" {
		t.Errorf("DatabasePath = %q, want /tmp/env.db", cfg.DatabasePath)
	}
}

// TestLoad_MissingConfigFile verifies a clear error when the env's file is
// absent.
func TestLoad_MissingConfigFile(t *testing.T) {
	writeConfigDir(t, "server: {}\n", "")
	t.Setenv("WEATHER_API_KEY", "test-api-key-12345")
	t.Setenv("ENV_NAME", "staging")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want missing file error")
	}
}

// TestParseDuration covers the fallback behavior.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		def  time.Duration
		want time.Duration
	}{
		{in: "30s", def: time.Second, want: 30 * time.Second},
		{in: "", def: time.Second, want: time.Second},
		{in: "bogus", def: time.Second, want: time.Second},
		{in: "-5s", def: time.Second, want: time.Second},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, tt.def); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
