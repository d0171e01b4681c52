package http

import (
	"context"
	"testing"
	"time"
)

// TestInFlightTracker_Counting verifies increments and decrements balance
// out.
func TestInFlightTracker_Counting(t *testing.T) {
	var tr inFlightTracker
	tr.Increment()
	tr.Increment()
	if got := tr.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	tr.Decrement()
	tr.Decrement()
	if got := tr.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

// TestInFlightTracker_WaitForZero verifies waiting completes once the count
// drains and gives up when the context ends first.
func TestInFlightTracker_WaitForZero(t *testing.T) {
	var tr inFlightTracker
	tr.Increment()

	go func() {
		time.Sleep(10 * time.Millisecond)
		tr.Decrement()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.WaitForZero(ctx, time.Millisecond); err != nil {
		t.Fatalf("WaitForZero() error = %v", err)
	}

	tr.Increment()
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer shortCancel()
	if err := tr.WaitForZero(shortCtx, time.Millisecond); err == nil {
		t.Fatal("WaitForZero() error = nil, want deadline exceeded")
	}
}
