// Package circuitbreaker guards repeatedly-failing operations — chiefly
// the storage watchdog's remount script — so a broken remount isn't
// re-attempted on every tick once it has already failed enough times.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned when the breaker is rejecting calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State is one of closed, open, half-open.
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
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	OnStateChange    func(from, to State)
}

// DefaultConfig opens after 5 consecutive failures and probes again after
// a minute.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
	}
}

// Breaker is a closed/open/half-open circuit breaker.
type Breaker struct {
	mu              sync.RWMutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	config          Config
	onStateChange   func(from, to State)
}

// New builds a Breaker from config, filling in defaults for zero fields.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Breaker{
		state:         StateClosed,
		config:        config,
		onStateChange: config.OnStateChange,
	}
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}
	err := fn()
	b.afterCall(err)
	return err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailureTime) >= b.config.Timeout {
			b.transitionTo(StateHalfOpen)
		} else {
			return fmt.Errorf("%w: will retry after %v", ErrCircuitOpen, b.config.Timeout-time.Since(b.lastFailureTime))
		}
	}
	return nil
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.recordFailure()
	} else {
		b.recordSuccess()
	}
}

func (b *Breaker) recordFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.FailureThreshold {
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		b.transitionTo(StateOpen)
	case StateOpen:
	}
}

func (b *Breaker) recordSuccess() {
	b.failureCount = 0

	switch b.state {
	case StateClosed:
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	case StateOpen:
	}
}

func (b *Breaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState

	switch newState {
	case StateClosed, StateOpen:
		b.failureCount = 0
		b.successCount = 0
	case StateHalfOpen:
		b.successCount = 0
	}

	if b.onStateChange != nil {
		b.onStateChange(oldState, newState)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(StateClosed)
}

// Stats is a snapshot of breaker counters, as returned by GetStats.
type Stats struct {
	State           State
	FailureCount    int
	SuccessCount    int
	LastFailureTime time.Time
}

// GetStats returns a snapshot of the breaker's counters.
func (b *Breaker) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		State:           b.state,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailureTime,
	}
}
