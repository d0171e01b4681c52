package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit is open and the cooldown has
// not yet elapsed.
var ErrOpen = errors.New("circuit breaker open")

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters. Zero values fall back to
// 5 failures to open, 2 successes to close, 30s cooldown.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
	OnStateChange    func(from, to State)
}

// CircuitBreaker protects an upstream dependency: after FailureThreshold
// consecutive failures it rejects calls for Cooldown, then admits probe
// calls until SuccessThreshold consecutive successes close it again.
type CircuitBreaker struct {
	mu            sync.Mutex
	cfg           Config
	state         State
	failures      int
	successes     int
	openedAt      time.Time
}

// New creates a CircuitBreaker from cfg, applying defaults for zero fields.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Call runs fn when the circuit admits it. While open, returns ErrOpen until
// the cooldown elapses; the next call then probes in half-open state.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

// admit decides whether a call may proceed, transitioning open -> half-open
// when the cooldown has elapsed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return nil
	}
	if time.Since(cb.openedAt) < cb.cfg.Cooldown {
		return ErrOpen
	}
	cb.transitionLocked(StateHalfOpen)
	cb.successes = 0
	return nil
}

// record updates breaker state from a call outcome.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.successes = 0
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = time.Now()
			cb.failures = 0
			cb.transitionLocked(StateOpen)
		}
		return
	}

	cb.failures = 0
	cb.successes++
	if cb.state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
		cb.successes = 0
		cb.transitionLocked(StateClosed)
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		// Callback runs under the lock; keep it cheap (metrics only).
		cb.cfg.OnStateChange(from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
