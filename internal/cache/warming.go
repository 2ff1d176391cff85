package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/runboardhq/runboard/internal/models"
	"github.com/runboardhq/runboard/internal/observability"
)

// SeriesFetcher is implemented by the service layer to fetch a scalar series.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type SeriesFetcher interface {
	GetScalars(ctx context.Context, run, tag string) (models.ScalarSeries, error)
}

// CacheWarmer warms the cache by prefetching a list of tracked series.
type CacheWarmer struct {
	fetcher SeriesFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher SeriesFetcher, logger *zap.Logger) *CacheWarmer {
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches each series concurrently and populates the cache via the
// fetcher. Returns an error if any series failed (aggregated).
func (w *CacheWarmer) Warm(ctx context.Context, series []models.SeriesKey) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("series", len(series)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(series))
	for _, key := range series {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.fetcher.GetScalars(ctx, key.Run, key.Tag)
			if err != nil {
				errCh <- fmt.Errorf("warm %s: %w", key, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("series", len(series)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval
// until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, series []models.SeriesKey, interval time.Duration) error {
	if err := w.Warm(ctx, series); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, series); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
