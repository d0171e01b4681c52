package http

import (
	"context"
	"sync/atomic"
	"time"
)

// inFlightTracker counts requests currently being served. Used during
// graceful shutdown to drain in-flight requests before closing resources.
type inFlightTracker struct {
	count atomic.Int64
}

func (t *inFlightTracker) Increment() { t.count.Add(1) }
func (t *inFlightTracker) Decrement() { t.count.Add(-1) }
func (t *inFlightTracker) Count() int64 {
	return t.count.Load()
}

// WaitForZero blocks until the in-flight count reaches zero or ctx is done.
func (t *inFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if t.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// globalInFlightTracker is the process-wide counter driven by MetricsMiddleware.
var globalInFlightTracker = &inFlightTracker{}

// InFlightCount returns the current number of in-flight requests.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// WaitForInFlight blocks until in-flight requests reach zero or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlightTracker.WaitForZero(ctx, checkInterval)
}
