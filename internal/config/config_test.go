package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse([]byte("{}"))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if cfg.ServerPort != "6006" {
		t.Errorf("ServerPort = %q, want 6006", cfg.ServerPort)
	}
	if cfg.ProviderBackend != "logdir" {
		t.Errorf("ProviderBackend = %q, want logdir", cfg.ProviderBackend)
	}
	if cfg.LogdirPath != "./logs" {
		t.Errorf("LogdirPath = %q, want ./logs", cfg.LogdirPath)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.CacheTTL)
	}
	if cfg.StaleCacheTTL != 10*time.Minute {
		t.Errorf("StaleCacheTTL = %v, want 10m", cfg.StaleCacheTTL)
	}
	if !cfg.CoalesceEnabled {
		t.Error("CoalesceEnabled should default to true")
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.RateLimitRPS != 100 || cfg.RateLimitBurst != 250 {
		t.Errorf("rate limit = %d/%d, want 100/250", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.TestingMode {
		t.Error("TestingMode should default to false")
	}
}

func TestParse_FullFile(t *testing.T) {
	yaml := `
testing_mode: true
server:
  port: "9090"
provider:
  backend: remote
  remote:
    url: http://localhost:7070
    timeout: 3s
request:
  timeout: 2s
cache:
  backend: redis
  ttl: 1m
  stale_ttl: 30m
  redis:
    addr: redis.internal:6379
    db: 2
  warm: true
  warm_interval: 10m
circuit_breaker:
  enabled: true
  failure_threshold: 7
  timeout: 45s
reliability:
  retry_max_attempts: 5
  rate_limit_rps: 50
lifecycle:
  degraded_error_pct: 20
metrics:
  tracked_series:
    - exp1/loss
    - exp1/accuracy
`
	cfg, err := parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if !cfg.TestingMode {
		t.Error("TestingMode = false, want true")
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.ProviderBackend != "remote" || cfg.RemoteURL != "http://localhost:7070" {
		t.Errorf("remote provider = %q %q", cfg.ProviderBackend, cfg.RemoteURL)
	}
	if cfg.RemoteTimeout != 3*time.Second {
		t.Errorf("RemoteTimeout = %v, want 3s", cfg.RemoteTimeout)
	}
	// RequestTimeout auto-adjusts to exceed the remote timeout
	if cfg.RequestTimeout != 4*time.Second {
		t.Errorf("RequestTimeout = %v, want 4s", cfg.RequestTimeout)
	}
	if cfg.CacheBackend != "redis" || cfg.RedisAddr != "redis.internal:6379" || cfg.RedisDB != 2 {
		t.Errorf("redis config = %q %q %d", cfg.CacheBackend, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.StaleCacheTTL != 30*time.Minute {
		t.Errorf("StaleCacheTTL = %v, want 30m", cfg.StaleCacheTTL)
	}
	if !cfg.CacheWarmEnabled || cfg.CacheWarmInterval != 10*time.Minute {
		t.Errorf("warming = %v %v", cfg.CacheWarmEnabled, cfg.CacheWarmInterval)
	}
	if !cfg.BreakerEnabled || cfg.BreakerFailureThreshold != 7 || cfg.BreakerTimeout != 45*time.Second {
		t.Errorf("breaker = %v %d %v", cfg.BreakerEnabled, cfg.BreakerFailureThreshold, cfg.BreakerTimeout)
	}
	if cfg.RetryAttempts != 5 || cfg.RateLimitRPS != 50 {
		t.Errorf("reliability = %d %d", cfg.RetryAttempts, cfg.RateLimitRPS)
	}
	if cfg.DegradedErrorPct != 20 {
		t.Errorf("DegradedErrorPct = %d, want 20", cfg.DegradedErrorPct)
	}
	if len(cfg.TrackedSeries) != 2 {
		t.Errorf("TrackedSeries = %v, want 2 entries", cfg.TrackedSeries)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("PROVIDER_BACKEND", "logdir")
	t.Setenv("RUNBOARD_LOGDIR", "/data/runs")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")

	yaml := `
provider:
  backend: sqlite
  sqlite:
    path: /tmp/board.db
cache:
  backend: in_memory
`
	cfg, err := parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if cfg.ProviderBackend != "logdir" {
		t.Errorf("ProviderBackend = %q, want env override logdir", cfg.ProviderBackend)
	}
	if cfg.LogdirPath != "/data/runs" {
		t.Errorf("LogdirPath = %q, want /data/runs", cfg.LogdirPath)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want env override memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
}

func TestParse_InvalidBackends(t *testing.T) {
	if _, err := parse([]byte("provider:\n  backend: carrier_pigeon\n")); err == nil {
		t.Error("expected error for unknown provider backend")
	}
	if _, err := parse([]byte("cache:\n  backend: floppy\n")); err == nil {
		t.Error("expected error for unknown cache backend")
	}
	if _, err := parse([]byte("provider:\n  backend: sqlite\n")); err == nil {
		t.Error("expected error for sqlite backend without path")
	}
	if _, err := parse([]byte("provider:\n  backend: remote\n")); err == nil {
		t.Error("expected error for remote backend without url")
	}
}

func TestLoad_ReadsEnvNamedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "server:\n  port: \"7171\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config", "unittest.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENV_NAME", "unittest")
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "7171" {
		t.Errorf("ServerPort = %q, want 7171", cfg.ServerPort)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("ENV_NAME", "nosuchenv")
	t.Chdir(t.TempDir())
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		def  time.Duration
		want time.Duration
	}{
		{"5s", time.Second, 5 * time.Second},
		{"", time.Second, time.Second},
		{"garbage", time.Second, time.Second},
		{"-3s", time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, tt.def); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
