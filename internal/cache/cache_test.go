package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tgordeev/weather-balance-service/internal/models"
)

// TestInMemoryCache_GetSet verifies that Set stores readings and Get
// retrieves them while fresh.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := models.TemperatureReading{City: "london", Temperature: 15, FetchedAt: time.Now()}
	if err := c.Set(ctx, "london", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "london")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.City != val.City || got.Temperature != val.Temperature {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when the
// requested key has never been stored.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Stale verifies that a stale entry is not served but
// stays in the map until the next Set overwrites it.
func TestInMemoryCache_Get_Stale(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := models.TemperatureReading{City: "london", Temperature: 15}
	if err := c.Set(ctx, "london", val, 1*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	_, ok, err := c.Get(ctx, "london")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for stale entry")
	}

	// Stale entry is retained, not deleted.
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (stale entry retained)", c.Len())
	}
}

// TestInMemoryCache_Set_Overwrite verifies that a refresh overwrites the
// prior entry for the key rather than appending.
func TestInMemoryCache_Set_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "london", models.TemperatureReading{Temperature: 15}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(ctx, "london", models.TemperatureReading{Temperature: 20}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, _ := c.Get(ctx, "london")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Temperature != 20 {
		t.Errorf("Temperature = %v, want 20 after overwrite", got.Temperature)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

// TestInMemoryCache_Concurrent verifies that concurrent readers and writers
// on the same and different keys do not race or observe torn entries.
func TestInMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	keys := []string{"london", "berlin", "tokyo"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			key := keys[i%len(keys)]
			val := models.TemperatureReading{City: key, Temperature: float64(i)}
			if err := c.Set(ctx, key, val, time.Minute); err != nil {
				t.Errorf("Set() error = %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			key := keys[i%len(keys)]
			got, ok, err := c.Get(ctx, key)
			if err != nil {
				t.Errorf("Get() error = %v", err)
			}
			if ok && got.City != key {
				t.Errorf("Get(%q) returned entry for %q", key, got.City)
			}
		}(i)
	}
	wg.Wait()
}
