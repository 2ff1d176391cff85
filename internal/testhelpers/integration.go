//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/runboardhq/runboard/internal/cache"
	"github.com/runboardhq/runboard/internal/logdir"
	"github.com/runboardhq/runboard/internal/observability"
	"github.com/runboardhq/runboard/internal/provider"
	"github.com/runboardhq/runboard/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	LogdirPath    string
	CacheBackend  string // "in_memory", "memcached" or "redis"
	MemcachedAddr string
	RedisAddr     string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if RUNBOARD_LOGDIR is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	logdirPath := os.Getenv("RUNBOARD_LOGDIR")
	if logdirPath == "" {
		t.Skip("RUNBOARD_LOGDIR not set, skipping integration test")
	}

	cacheBackend := os.Getenv("INTEGRATION_CACHE_BACKEND")
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return IntegrationTestConfig{
		LogdirPath:    logdirPath,
		CacheBackend:  cacheBackend,
		MemcachedAddr: memcachedAddr,
		RedisAddr:     redisAddr,
	}
}

// SetupIntegrationService creates a fully configured service for integration tests.
// Returns board service, cache instance, and cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.BoardService, cache.Cache, func()) {
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	_ = logger // May be used later

	p := SetupIntegrationProvider(t, cfg)

	var cacheSvc cache.Cache
	var cleanup func()

	switch cfg.CacheBackend {
	case "memcached":
		memcachedCache, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2, 10*time.Minute)
		if err == nil {
			cacheSvc = memcachedCache
			cleanup = func() { memcachedCache.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available (%v), using in-memory cache", err)
			cacheSvc = cache.NewInMemoryCache()
			cleanup = func() {}
		}
	case "redis":
		redisCache := cache.NewRedisCache(cfg.RedisAddr, "", 0, 10*time.Minute)
		if redisCache.Ping() == nil {
			cacheSvc = redisCache
			cleanup = func() { redisCache.Close() }
			t.Logf("Using Redis cache at %s", cfg.RedisAddr)
		} else {
			t.Logf("Redis not available, using in-memory cache")
			_ = redisCache.Close()
			cacheSvc = cache.NewInMemoryCache()
			cleanup = func() {}
		}
	default:
		cacheSvc = cache.NewInMemoryCache()
		cleanup = func() {}
	}

	boardService := service.NewBoardService(p, cacheSvc, 30*time.Second, 10*time.Minute, true, 5*time.Second)

	return boardService, cacheSvc, cleanup
}

// SetupIntegrationProvider creates a logdir provider for integration tests.
func SetupIntegrationProvider(t *testing.T, cfg IntegrationTestConfig) provider.ScalarProvider {
	p, err := logdir.New(cfg.LogdirPath)
	if err != nil {
		t.Fatalf("logdir.New() error = %v", err)
	}
	return p
}
