package service

import (
	"context"
	"sync"
	"time"

	"github.com/tgordeev/weather-balance-service/internal/models"
)

// inFlight is a single upstream fetch that multiple callers may wait on.
// result and err are written once before done is closed.
type inFlight struct {
	done   chan struct{}
	result models.TemperatureReading
	err    error
}

// requestCoalescer serializes refreshes per city: while a fetch for a key is
// in flight, further callers for that key wait on its result instead of
// issuing their own upstream call.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlight
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlight),
		timeout:  timeout,
	}
}

// GetOrDo returns the result of an in-flight fetch for key, or starts one by
// running fn. Waiting is bounded by the coalescer timeout and the caller's
// context; the fetch itself keeps running so later callers can still use it.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.TemperatureReading, error)) (models.TemperatureReading, error) {
	rc.mu.Lock()
	if f, ok := rc.inFlight[key]; ok {
		rc.mu.Unlock()
		return rc.wait(ctx, f)
	}

	f := &inFlight{done: make(chan struct{})}
	rc.inFlight[key] = f
	rc.mu.Unlock()

	go func() {
		f.result, f.err = fn()
		rc.mu.Lock()
		delete(rc.inFlight, key)
		rc.mu.Unlock()
		close(f.done)
	}()

	return rc.wait(ctx, f)
}

// wait blocks until the fetch completes, the caller's context ends, or the
// coalescer timeout elapses.
func (rc *requestCoalescer) wait(ctx context.Context, f *inFlight) (models.TemperatureReading, error) {
	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-f.done:
		if f.err != nil {
			return models.TemperatureReading{}, f.err
		}
		return f.result, nil
	case <-waitCtx.Done():
		return models.TemperatureReading{}, waitCtx.Err()
	}
}
