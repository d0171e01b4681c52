package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tgordeev/weather-balance-service/internal/models"
)

// recordingFetcher records which cities were fetched and can fail selected
// ones.
type recordingFetcher struct {
	mu      sync.Mutex
	fetched []string
	failFor map[string]error
}

func (f *recordingFetcher) GetTemperature(ctx context.Context, city string) (models.TemperatureReading, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, city)
	f.mu.Unlock()
	if err, ok := f.failFor[city]; ok {
		return models.TemperatureReading{}, err
	}
	return models.TemperatureReading{City: city}, nil
}

// TestWarmer_FetchesAllCities verifies every city is fetched once.
func TestWarmer_FetchesAllCities(t *testing.T) {
	fetcher := &recordingFetcher{}
	w := NewWarmer(fetcher, nil)

	cities := []string{"london", "berlin", "tokyo"}
	if err := w.Warm(context.Background(), cities); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	if len(fetcher.fetched) != len(cities) {
		t.Fatalf("fetched %d cities, want %d", len(fetcher.fetched), len(cities))
	}
	seen := make(map[string]bool)
	for _, c := range fetcher.fetched {
		seen[c] = true
	}
	for _, c := range cities {
		if !seen[c] {
			t.Errorf("city %q not fetched", c)
		}
	}
}

// TestWarmer_AggregatesFailures verifies partial failures surface as one
// error naming the failure count while the rest still warm.
func TestWarmer_AggregatesFailures(t *testing.T) {
	fetcher := &recordingFetcher{failFor: map[string]error{
		"berlin": errors.New("upstream down"),
	}}
	w := NewWarmer(fetcher, nil)

	err := w.Warm(context.Background(), []string{"london", "berlin", "tokyo"})
	if err == nil {
		t.Fatal("Warm() error = nil, want aggregated failure")
	}
	if !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("error = %v, want failure count 1 of 3", err)
	}
	if len(fetcher.fetched) != 3 {
		t.Errorf("fetched %d cities, want all 3 despite failure", len(fetcher.fetched))
	}
}

// TestWarmer_EmptyCityList verifies warming nothing succeeds.
func TestWarmer_EmptyCityList(t *testing.T) {
	w := NewWarmer(&recordingFetcher{}, nil)
	if err := w.Warm(context.Background(), nil); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
}
