package lifecycle

import "testing"

// TestShuttingDownFlag verifies the shutdown flag round-trips.
func TestShuttingDownFlag(t *testing.T) {
	t.Cleanup(func() { SetShuttingDown(false) })

	if IsShuttingDown() {
		t.Fatal("IsShuttingDown() = true before SetShuttingDown")
	}
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true)")
	}
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false)")
	}
}
