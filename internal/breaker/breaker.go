// Package breaker implements a circuit breaker that stops calling a failing
// dependency for a cooldown period after repeated failures.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultFailureThreshold = 3
	DefaultResetTimeout     = 30 * time.Second
)

// State is the breaker's position in the CLOSED -> OPEN -> HALF_OPEN cycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is matched by every rejection issued while the circuit is open.
var ErrOpen = errors.New("breaker: circuit open")

// OpenError is returned without invoking the wrapped function while the
// circuit is open or a half-open probe is already in flight.
type OpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker: circuit %q open, retry at %s", e.Name, e.RetryAt.Format(time.RFC3339Nano))
}

// Is reports ErrOpen so callers can use errors.Is without a type assertion.
func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// Config configures a Breaker.
type Config struct {
	// Name identifies the protected dependency in diagnostics only.
	Name string

	// FailureThreshold is the number of consecutive failures that trips the
	// circuit. Zero means DefaultFailureThreshold.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a probe is let
	// through. Zero means DefaultResetTimeout.
	ResetTimeout time.Duration
}

// StateListener observes state transitions. It is called with the breaker's
// lock released.
type StateListener func(name string, from, to State)

// Option customises a Breaker.
type Option func(*Breaker)

// WithStateListener registers a callback for every state transition.
func WithStateListener(fn StateListener) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.listeners = append(b.listeners, fn)
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// Breaker is a long-lived circuit breaker guarding one dependency. All state
// changes go through Execute or Reset.
type Breaker struct {
	name      string
	threshold int
	timeout   time.Duration
	now       func() time.Time
	listeners []StateListener

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// New creates a Breaker in the CLOSED state.
func New(cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		timeout:   cfg.ResetTimeout,
		now:       time.Now,
	}
	if b.threshold <= 0 {
		b.threshold = DefaultFailureThreshold
	}
	if b.timeout <= 0 {
		b.timeout = DefaultResetTimeout
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the diagnostic name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state. An open circuit whose timeout has elapsed
// still reports OPEN until the next call promotes it to HALF_OPEN.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the number of consecutive failures recorded.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// LastFailure returns the time of the most recent recorded failure.
func (b *Breaker) LastFailure() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailure
}

// Reset forces the circuit back to CLOSED and clears the failure counter.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

// Execute runs fn if the circuit allows it. While the circuit is open it
// returns an *OpenError immediately. The context is passed through to fn and
// is not consulted by the breaker itself.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

// Do is the value-returning form of Execute.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateOpen:
		retryAt := b.lastFailure.Add(b.timeout)
		if b.now().Before(retryAt) {
			b.mu.Unlock()
			return &OpenError{Name: b.name, RetryAt: retryAt}
		}
		b.state = StateHalfOpen
		b.probing = true
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return nil
	case StateHalfOpen:
		if b.probing {
			retryAt := b.now()
			b.mu.Unlock()
			return &OpenError{Name: b.name, RetryAt: retryAt}
		}
		b.probing = true
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	from := b.state
	to := from
	if err == nil {
		b.failures = 0
		b.probing = false
		to = StateClosed
	} else {
		b.failures++
		b.lastFailure = b.now()
		switch from {
		case StateHalfOpen:
			b.probing = false
			to = StateOpen
		case StateClosed:
			if b.failures >= b.threshold {
				to = StateOpen
			}
		}
	}
	b.state = to
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	for _, fn := range b.listeners {
		fn(b.name, from, to)
	}
}
