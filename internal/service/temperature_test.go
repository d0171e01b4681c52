package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tgordeev/weather-balance-service/internal/cache"
	"github.com/tgordeev/weather-balance-service/internal/models"
)

// mockWeatherClient is a controllable upstream for temperature tests.
type mockWeatherClient struct {
	calls       atomic.Int32
	temperature float64
	err         error
	delay       time.Duration
}

func (m *mockWeatherClient) GetCurrentTemperature(ctx context.Context, city string) (models.TemperatureReading, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return models.TemperatureReading{}, ctx.Err()
		}
	}
	if m.err != nil {
		return models.TemperatureReading{}, m.err
	}
	return models.TemperatureReading{
		City:        city,
		Temperature: m.temperature,
		FetchedAt:   time.Now(),
	}, nil
}

func (m *mockWeatherClient) ValidateAPIKey(ctx context.Context) error { return nil }

// TestGetTemperature_CachesFreshReading verifies the second lookup within the
// TTL is served from cache with no additional upstream call.
func TestGetTemperature_CachesFreshReading(t *testing.T) {
	upstream := &mockWeatherClient{temperature: 15.0}
	svc := NewTemperatureService(upstream, cache.NewInMemoryCache(), time.Minute, false, 0)
	ctx := context.Background()

	first, err := svc.GetTemperature(ctx, "London")
	if err != nil {
		t.Fatalf("GetTemperature() error = %v", err)
	}
	if first.Temperature != 15.0 {
		t.Errorf("Temperature = %v, want 15.0", first.Temperature)
	}

	second, err := svc.GetTemperature(ctx, "London")
	if err != nil {
		t.Fatalf("GetTemperature() second call error = %v", err)
	}
	if second.Temperature != 15.0 {
		t.Errorf("cached Temperature = %v, want 15.0", second.Temperature)
	}
	if got := upstream.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (second lookup cached)", got)
	}
}

// TestGetTemperature_RefreshesAfterTTL verifies an expired entry triggers
// exactly one refresh and the cache is overwritten with the new value.
func TestGetTemperature_RefreshesAfterTTL(t *testing.T) {
	upstream := &mockWeatherClient{temperature: 10.0}
	svc := NewTemperatureService(upstream, cache.NewInMemoryCache(), 10*time.Millisecond, false, 0)
	ctx := context.Background()

	if _, err := svc.GetTemperature(ctx, "berlin"); err != nil {
		t.Fatalf("GetTemperature() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	upstream.temperature = 22.5

	reading, err := svc.GetTemperature(ctx, "berlin")
	if err != nil {
		t.Fatalf("GetTemperature() after expiry error = %v", err)
	}
	if reading.Temperature != 22.5 {
		t.Errorf("Temperature = %v, want refreshed 22.5", reading.Temperature)
	}
	if got := upstream.calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

// TestGetTemperature_UpstreamFailure verifies a miss plus a failed fetch
// surfaces ErrWeatherUnavailable wrapping the cause.
func TestGetTemperature_UpstreamFailure(t *testing.T) {
	cause := errors.New("connection refused")
	upstream := &mockWeatherClient{err: cause}
	svc := NewTemperatureService(upstream, cache.NewInMemoryCache(), time.Minute, false, 0)

	_, err := svc.GetTemperature(context.Background(), "london")
	if !errors.Is(err, ErrWeatherUnavailable) {
		t.Fatalf("error = %v, want ErrWeatherUnavailable", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want wrapped cause", err)
	}
}

// TestGetTemperature_NoStaleFallback verifies an expired entry is not served
// when the refresh fails: the request fails outright.
func TestGetTemperature_NoStaleFallback(t *testing.T) {
	upstream := &mockWeatherClient{temperature: 5.0}
	svc := NewTemperatureService(upstream, cache.NewInMemoryCache(), 10*time.Millisecond, false, 0)
	ctx := context.Background()

	if _, err := svc.GetTemperature(ctx, "tokyo"); err != nil {
		t.Fatalf("GetTemperature() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	upstream.err = errors.New("upstream down")

	if _, err := svc.GetTemperature(ctx, "tokyo"); !errors.Is(err, ErrWeatherUnavailable) {
		t.Fatalf("error = %v, want ErrWeatherUnavailable despite stale entry", err)
	}
}

// TestGetTemperature_NormalizesCity verifies different spellings of the same
// city share one cache entry and one upstream call.
func TestGetTemperature_NormalizesCity(t *testing.T) {
	upstream := &mockWeatherClient{temperature: 12.0}
	store := cache.NewInMemoryCache()
	svc := NewTemperatureService(upstream, store, time.Minute, false, 0)
	ctx := context.Background()

	for _, spelling := range []string{"London", " london ", "LONDON"} {
		if _, err := svc.GetTemperature(ctx, spelling); err != nil {
			t.Fatalf("GetTemperature(%q) error = %v", spelling, err)
		}
	}

	if got := upstream.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 for equivalent spellings", got)
	}
	if store.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", store.Len())
	}
}

// TestNormalizeCity covers trimming and lowercasing.
func TestNormalizeCity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "London", want: "london"},
		{in: "  New York  ", want: "new york"},
		{in: "TOKYO", want: "tokyo"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := NormalizeCity(tt.in); got != tt.want {
			t.Errorf("NormalizeCity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
