package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tgordeev/weather-balance-service/internal/models"
	"github.com/tgordeev/weather-balance-service/internal/observability"
)

// TemperatureFetcher is implemented by the service layer to fetch the
// temperature for a city. Used by Warmer to avoid a circular dependency on
// the service package.
type TemperatureFetcher interface {
	GetTemperature(ctx context.Context, city string) (models.TemperatureReading, error)
}

// Warmer prefetches temperatures for a list of cities so the first
// balance-update requests after startup hit a warm cache.
type Warmer struct {
	fetcher TemperatureFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher TemperatureFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches the temperature for each city concurrently, populating the
// cache through the fetcher. Returns an aggregated error if any city failed.
func (w *Warmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("cities", len(cities)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(cities))
	for _, city := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			if _, err := w.fetcher.GetTemperature(ctx, city); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", city, err)
			}
		}(city)
	}
	wg.Wait()
	close(errCh)

	var failed int
	var firstErr error
	for err := range errCh {
		failed++
		if firstErr == nil {
			firstErr = err
		}
	}
	if w.logger != nil {
		w.logger.Info("cache warming done",
			zap.Int("cities", len(cities)),
			zap.Int("failed", failed),
			zap.Duration("duration", time.Since(start)))
	}
	if firstErr != nil {
		return fmt.Errorf("%d of %d cities failed: %w", failed, len(cities), firstErr)
	}
	return nil
}

// WarmPeriodic re-warms the given cities every interval until ctx is done.
// Individual failures are logged and do not stop the loop.
func (w *Warmer) WarmPeriodic(ctx context.Context, cities []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, cities); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warming", zap.Error(err))
			}
		}
	}
}
