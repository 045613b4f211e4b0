// ABOUTME: Circuit breaker guarding calls to the AI and ticket backends
// ABOUTME: Opens after consecutive failures, half-opens after a reset timeout

package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and calls are rejected
// without reaching the backend.
var ErrOpen = errors.New("circuit open")

// Circuit states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// Status is the operator-visible state of one breaker
type Status struct {
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Failures    int        `json:"failures"`
	Threshold   int        `json:"threshold"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

// Breaker protects a single external backend. After Threshold consecutive
// failures the circuit opens; after ResetTimeout one probe call is allowed
// through (half-open) and its outcome closes or re-opens the circuit.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       string
	failures    int
	lastFailure time.Time
	logger      *slog.Logger
}

// New creates a closed breaker for the named backend
func New(name string, threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = time.Minute
	}
	return &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		logger:       slog.Default().With("component", "breaker", "backend", name),
	}
}

// Do runs fn under the breaker. An open circuit returns ErrOpen without
// invoking fn; fn's own error counts as a failure.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	if err := fn(); err != nil {
		b.failure()
		return err
	}

	b.success()
	return nil
}

// allow checks whether a call may proceed, possibly moving to half-open
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if time.Since(b.lastFailure) > b.resetTimeout {
		b.state = StateHalfOpen
		b.logger.Info("circuit half-open, allowing probe")
		return nil
	}
	return ErrOpen
}

func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.state = StateClosed
		b.logger.Info("circuit closed after success")
	}
}

func (b *Breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	// A half-open probe failure re-opens immediately
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		if b.state != StateOpen {
			b.logger.Warn("circuit opened", "failures", b.failures)
		}
		b.state = StateOpen
	}
}

// Status returns the current operator-visible state
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		Name:      b.name,
		State:     b.state,
		Failures:  b.failures,
		Threshold: b.threshold,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailure = &t
	}
	return s
}
