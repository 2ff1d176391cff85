package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/runboardhq/runboard/internal/cache"
	"github.com/runboardhq/runboard/internal/models"
	"github.com/runboardhq/runboard/internal/observability"
	"github.com/runboardhq/runboard/internal/provider"
)

// BoardService orchestrates scalar series retrieval using cache-aside with
// provider fallback. Run and tag listings pass through to the provider.
type BoardService struct {
	provider        provider.ScalarProvider
	cache           cache.Cache
	ttl             time.Duration
	staleCacheTTL   time.Duration // Maximum age for stale cache fallback (0 = disabled)
	stampedeTracker *stampedeTracker
	coalescer       *requestCoalescer // Optional request coalescing (nil if disabled)
}

// NewBoardService creates a BoardService. ttl is the cache freshness window
// for scalar series; staleCacheTTL is the maximum age for stale fallback
// (0 = disabled). coalesceEnabled and coalesceTimeout configure request
// coalescing (disabled if timeout 0).
func NewBoardService(p provider.ScalarProvider, c cache.Cache, ttl, staleCacheTTL time.Duration, coalesceEnabled bool, coalesceTimeout time.Duration) *BoardService {
	var coalescer *requestCoalescer
	if coalesceEnabled && coalesceTimeout > 0 {
		coalescer = newRequestCoalescer(coalesceTimeout)
	}
	return &BoardService{
		provider:        p,
		cache:           c,
		ttl:             ttl,
		staleCacheTTL:   staleCacheTTL,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// ListRuns returns the provider's run names.
func (s *BoardService) ListRuns(ctx context.Context) ([]string, error) {
	return s.provider.ListRuns(ctx)
}

// ListTags returns the provider's tags for the run.
func (s *BoardService) ListTags(ctx context.Context, run string) ([]string, error) {
	return s.provider.ListTags(ctx, strings.TrimSpace(run))
}

// GetScalars retrieves the scalar series for run/tag using cache-aside.
// Checks cache first, falls back to the provider on cache miss, and populates
// the cache on success. When the provider fails and stale fallback is
// enabled, a stale cached series is served with Stale set.
func (s *BoardService) GetScalars(ctx context.Context, run, tag string) (models.ScalarSeries, error) {
	run = strings.TrimSpace(run)
	tag = strings.TrimSpace(tag)
	key := seriesKey(run, tag)
	start := time.Now()
	logger := loggerFromContext(ctx)

	getStart := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
	} else if ok {
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		observability.CacheHitsTotal.WithLabelValues("scalars").Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("series", key))
			logger.Debug("scalars served", zap.String("series", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		}
		return cached, nil
	}

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordHit(key)
	seriesLabel := observability.MetricSeriesLabel(key)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(seriesLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(seriesLabel).Observe(float64(concurrentMisses))
	}

	if logger != nil {
		logger.Debug("cache miss, reading provider", zap.String("series", key))
	}

	// Use coalescer if enabled to prevent concurrent provider reads for same key
	var data models.ScalarSeries
	var readErr error
	if s.coalescer != nil {
		coalesceStart := time.Now()
		data, readErr = s.coalescer.GetOrDo(ctx, key, func() (models.ScalarSeries, error) {
			return s.provider.ReadScalars(ctx, run, tag)
		})
		coalesceWait := time.Since(coalesceStart)
		if readErr == nil {
			// Check if we waited (coalesced) vs initiated the request
			// If wait time > 0, we likely coalesced (approximate)
			if coalesceWait > 10*time.Millisecond {
				observability.RequestCoalescingHitsTotal.WithLabelValues(seriesLabel).Inc()
			}
			observability.RequestCoalescingWaitSeconds.Observe(coalesceWait.Seconds())
		}
	} else {
		data, readErr = s.provider.ReadScalars(ctx, run, tag)
	}
	if readErr != nil {
		// Provider failed - try stale cache if enabled
		if s.staleCacheTTL > 0 {
			stale, ok, staleErr := s.cache.GetStale(ctx, key, s.staleCacheTTL)
			if staleErr == nil && ok {
				staleAge := time.Since(stale.FetchedAt)
				observability.StaleCacheServesTotal.WithLabelValues(seriesLabel).Inc()
				observability.StaleCacheAgeSeconds.Observe(staleAge.Seconds())
				stale.Stale = true
				if logger != nil {
					logger.Info("serving stale cache", zap.String("series", key), zap.Duration("age", staleAge))
				}
				return stale, nil
			}
		}
		return models.ScalarSeries{}, fmt.Errorf("read scalars for %s: %w", key, readErr)
	}

	setStart := time.Now()
	if setErr := s.cache.Set(ctx, key, data, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		if logger != nil {
			logger.Warn("cache set failed", zap.String("series", key), zap.Error(setErr))
		}
	} else {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
	}
	if logger != nil {
		logger.Debug("scalars served", zap.String("series", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return data, nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

// seriesKey builds the cache key for a run/tag pair.
func seriesKey(run, tag string) string {
	return run + "/" + tag
}
