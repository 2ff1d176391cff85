// Package program wires configuration, providers, caching and the HTTP
// server into a runnable scalar metrics server.
package program

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/runboardhq/runboard/internal/cache"
	"github.com/runboardhq/runboard/internal/circuitbreaker"
	"github.com/runboardhq/runboard/internal/config"
	"github.com/runboardhq/runboard/internal/degraded"
	httphandler "github.com/runboardhq/runboard/internal/http"
	"github.com/runboardhq/runboard/internal/lifecycle"
	"github.com/runboardhq/runboard/internal/logdir"
	"github.com/runboardhq/runboard/internal/models"
	"github.com/runboardhq/runboard/internal/observability"
	"github.com/runboardhq/runboard/internal/provider"
	"github.com/runboardhq/runboard/internal/remote"
	"github.com/runboardhq/runboard/internal/service"
	"github.com/runboardhq/runboard/internal/store"
)

// shutdownInFlightCheckInterval is how often the drain loop re-checks the
// in-flight request count.
const shutdownInFlightCheckInterval = 100 * time.Millisecond

// RunMain builds the server from configuration, serves until interrupted,
// then shuts down gracefully. Returns the process exit code.
func RunMain() int {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", zap.Error(err))
		return 1
	}

	scalarProvider, closeProvider, err := buildProvider(cfg, logger)
	if err != nil {
		logger.Error("scalar provider", zap.Error(err))
		return 1
	}
	defer closeProvider()

	cacheSvc, cachePing, closeCache, err := buildCache(cfg, logger)
	if err != nil {
		logger.Error("cache backend", zap.Error(err))
		return 1
	}
	defer closeCache()

	boardService := service.NewBoardService(scalarProvider, cacheSvc, cfg.CacheTTL, cfg.StaleCacheTTL, cfg.CoalesceEnabled, cfg.CoalesceTimeout)

	healthConfig := &httphandler.HealthConfig{
		ReadyDelay:             cfg.ReadyDelay,
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		DegradedRetryInitial:   cfg.DegradedRetryInitial,
		DegradedRetryMax:       cfg.DegradedRetryMax,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
		CachePing:              cachePing,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(boardService, scalarProvider, healthConfig, logger, limiter)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)
	if len(cfg.TrackedSeries) > 0 {
		observability.SetTrackedSeries(cfg.TrackedSeries)
	}

	warmKeys := parseSeriesKeys(cfg.TrackedSeries)
	if cfg.CacheWarmEnabled && len(warmKeys) > 0 {
		warmer := cache.NewCacheWarmer(boardService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, warmKeys); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.CacheWarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), warmKeys, cfg.CacheWarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/runs", handler.GetRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{run}/tags", handler.GetTags).Methods("GET")
	apiRouter.HandleFunc("/scalars/{run}/{tag:.+}", handler.GetScalars).Methods("GET")

	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
		router.HandleFunc("/test", handler.GetTestStatus).Methods("GET")
		router.HandleFunc("/test/{action}", handler.PostTestAction).Methods("POST")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	degraded.StartRecoveryListener(ctx, scalarProvider.Check, cfg.DegradedRetryInitial, cfg.DegradedRetryMax, func() {
		logger.Error("degraded recovery exhausted, shutting down")
		lifecycle.SetShuttingDown(true)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("provider", cfg.ProviderBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("server", zap.Error(err))
		return 1
	case <-ctx.Done():
	}
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, shutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildProvider constructs the configured scalar provider. The returned
// close function releases provider resources during shutdown.
func buildProvider(cfg *config.Config, logger *zap.Logger) (provider.ScalarProvider, func(), error) {
	switch cfg.ProviderBackend {
	case "logdir":
		p, err := logdir.New(cfg.LogdirPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("provider backend: logdir", zap.String("path", cfg.LogdirPath))
		return p, func() {}, nil
	case "sqlite":
		p, err := store.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("provider backend: sqlite", zap.String("path", cfg.SQLitePath))
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Error("sqlite close", zap.Error(err))
			}
		}, nil
	case "remote":
		c, err := remote.NewWithRetry(cfg.RemoteURL, cfg.RemoteTimeout, cfg.RetryAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
		if err != nil {
			return nil, nil, err
		}
		if cfg.BreakerEnabled {
			cb := circuitbreaker.New(circuitbreaker.Config{
				FailureThreshold: cfg.BreakerFailureThreshold,
				SuccessThreshold: cfg.BreakerSuccessThreshold,
				Timeout:          cfg.BreakerTimeout,
				Component:        "remote_provider",
				OnStateChange: func(from, to circuitbreaker.State) {
					observability.RecordCircuitBreakerTransition("remote_provider", from.String(), to.String())
					observability.SetCircuitBreakerStateGauge("remote_provider", observability.CircuitBreakerStateValue(int(to)))
				},
			})
			c.SetCircuitBreaker(cb)
			observability.SetCircuitBreakerStateGauge("remote_provider", 0)
			logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.BreakerFailureThreshold), zap.Duration("timeout", cfg.BreakerTimeout))
		}
		logger.Info("provider backend: remote", zap.String("url", cfg.RemoteURL))
		return c, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider backend %q", cfg.ProviderBackend)
	}
}

// buildCache constructs the configured cache backend. Returns the cache,
// an optional ping function for health checks, and a close function.
func buildCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, func() error, func(), error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.StaleCacheTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc.Ping, func() {
			if err := mc.Close(); err != nil {
				logger.Error("memcached close", zap.Error(err))
			}
		}, nil
	case "redis":
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StaleCacheTTL)
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
		return rc, rc.Ping, func() {
			if err := rc.Close(); err != nil {
				logger.Error("redis close", zap.Error(err))
			}
		}, nil
	default:
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(), nil, func() {}, nil
	}
}

// parseSeriesKeys converts "run/tag" strings to SeriesKey values,
// skipping malformed entries. The tag may itself contain slashes.
func parseSeriesKeys(entries []string) []models.SeriesKey {
	keys := make([]models.SeriesKey, 0, len(entries))
	for _, e := range entries {
		run, tag, ok := strings.Cut(strings.TrimSpace(e), "/")
		if !ok || run == "" || tag == "" {
			continue
		}
		keys = append(keys, models.SeriesKey{Run: run, Tag: tag})
	}
	return keys
}
