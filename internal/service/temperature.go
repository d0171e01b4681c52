package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tgordeev/weather-balance-service/internal/cache"
	"github.com/tgordeev/weather-balance-service/internal/client"
	"github.com/tgordeev/weather-balance-service/internal/models"
	"github.com/tgordeev/weather-balance-service/internal/observability"
)

// ErrWeatherUnavailable is returned when the upstream weather lookup fails
// and no fresh cache entry exists. A stale entry is never served in its
// place: a miss plus a failed refresh is a hard failure for the request.
var ErrWeatherUnavailable = errors.New("weather lookup failed")

// TemperatureService provides temperature readings for cities using a
// cache-aside pattern over the upstream weather client.
type TemperatureService struct {
	client          client.WeatherClient
	cache           cache.Cache
	ttl             time.Duration
	stampedeTracker *stampedeTracker
	coalescer       *requestCoalescer // nil when coalescing disabled
}

// NewTemperatureService creates a TemperatureService. ttl is the cache
// freshness window. When coalesceTimeout > 0 and coalesceEnabled, concurrent
// misses for the same city share one upstream call.
func NewTemperatureService(client client.WeatherClient, cache cache.Cache, ttl time.Duration, coalesceEnabled bool, coalesceTimeout time.Duration) *TemperatureService {
	var coalescer *requestCoalescer
	if coalesceEnabled && coalesceTimeout > 0 {
		coalescer = newRequestCoalescer(coalesceTimeout)
	}
	return &TemperatureService{
		client:          client,
		cache:           cache,
		ttl:             ttl,
		stampedeTracker: newStampedeTracker(),
		coalescer:       coalescer,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetTemperature returns the temperature for city. A fresh cache entry is
// served without an upstream call; otherwise the upstream is queried and the
// cache overwritten on success. On upstream failure the error is surfaced as
// ErrWeatherUnavailable regardless of any stale entry.
func (s *TemperatureService) GetTemperature(ctx context.Context, city string) (models.TemperatureReading, error) {
	key := NormalizeCity(city)
	start := time.Now()
	logger := loggerFromContext(ctx)

	observability.TemperatureLookupsTotal.Inc()

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("temperature").Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("city", key), zap.Float64("temperature", cached.Temperature))
		}
		return cached, nil
	}

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordHit(key)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
	}

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("city", key))
	}

	var reading models.TemperatureReading
	var upstreamErr error
	if s.coalescer != nil {
		coalesceStart := time.Now()
		reading, upstreamErr = s.coalescer.GetOrDo(ctx, key, func() (models.TemperatureReading, error) {
			return s.client.GetCurrentTemperature(ctx, key)
		})
		if upstreamErr == nil {
			observability.RequestCoalescingWaitSeconds.Observe(time.Since(coalesceStart).Seconds())
		}
	} else {
		reading, upstreamErr = s.client.GetCurrentTemperature(ctx, key)
	}
	if upstreamErr != nil {
		return models.TemperatureReading{}, fmt.Errorf("%w: fetch temperature for %s: %w", ErrWeatherUnavailable, key, upstreamErr)
	}

	if setErr := s.cache.Set(ctx, key, reading, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		if logger != nil {
			logger.Warn("cache set failed", zap.String("city", key), zap.Error(setErr))
		}
	}
	if logger != nil {
		logger.Debug("temperature served",
			zap.String("city", key),
			zap.Float64("temperature", reading.Temperature),
			zap.Duration("duration", time.Since(start)))
	}
	return reading, nil
}

// NormalizeCity normalizes city names by trimming whitespace and converting
// to lowercase. Used for cache keys and upstream requests so that "London"
// and " london " resolve to the same entry.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
