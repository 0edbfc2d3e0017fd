// Package breaker implements a generic three-state circuit breaker shared
// by every protected dependency in the gateway — the LLM translator and the
// DuckDB connection pool each hold their own named instance.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three states in the breaker's state machine.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Do when the breaker is open and the cooldown has
// not yet elapsed.
var ErrOpen = errors.New("breaker: circuit open")

// Config controls the breaker's trip and recovery thresholds.
type Config struct {
	// Name identifies this breaker instance in logs and the health
	// snapshot, e.g. "translator" or "dbpool".
	Name string
	// FailureThreshold is the number of consecutive failures in Closed
	// state that trips the breaker to Open.
	FailureThreshold int
	// CooldownPeriod is how long the breaker stays Open before allowing a
	// single HalfOpen trial call.
	CooldownPeriod time.Duration
	// HalfOpenSuccesses is the number of consecutive HalfOpen successes
	// required to close the breaker again.
	HalfOpenSuccesses int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.CooldownPeriod <= 0 {
		c.CooldownPeriod = 30 * time.Second
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = 1
	}

	return c
}

// Breaker wraps calls that return a value of type T, tripping open after
// repeated failures and probing for recovery with a single trial call once
// the cooldown elapses. It is safe for concurrent use.
type Breaker[T any] struct {
	cfg Config

	mu             sync.Mutex
	state          State
	consecFail     int
	consecHalfOK   int
	openedAt       time.Time
	halfOpenInFlight bool
	forced         forcedMode
}

type forcedMode int

const (
	notForced forcedMode = iota
	forcedOpen
	forcedClosed
)

// New constructs a Breaker in the Closed state.
func New[T any](cfg Config) *Breaker[T] {
	return &Breaker[T]{cfg: cfg.withDefaults(), state: Closed}
}

// Name returns the breaker's configured name.
func (b *Breaker[T]) Name() string {
	return b.cfg.Name
}

// State returns the breaker's current state, resolving an elapsed cooldown
// into HalfOpen as a side effect, matching what Do would observe.
func (b *Breaker[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitionIfCooldownElapsedLocked()

	return b.state
}

func (b *Breaker[T]) transitionIfCooldownElapsedLocked() {
	if b.forced != notForced {
		return
	}
	if b.state == Open && time.Since(b.openedAt) >= b.cfg.CooldownPeriod {
		b.state = HalfOpen
		b.consecHalfOK = 0
		b.halfOpenInFlight = false
	}
}

// Do executes fn if the breaker permits it. In Closed state fn always runs.
// In Open state Do returns ErrOpen until the cooldown elapses. In HalfOpen
// state exactly one caller at a time is admitted as a trial; concurrent
// callers receive ErrOpen.
func (b *Breaker[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if !b.admit() {
		return zero, ErrOpen
	}

	result, err := fn(ctx)
	b.record(err)

	return result, err
}

func (b *Breaker[T]) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transitionIfCooldownElapsedLocked()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true

		return true
	default: // Open
		return false
	}
}

func (b *Breaker[T]) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.forced != notForced {
		return
	}

	switch b.state {
	case HalfOpen:
		b.halfOpenInFlight = false
		if err != nil {
			b.tripLocked()

			return
		}

		b.consecHalfOK++
		if b.consecHalfOK >= b.cfg.HalfOpenSuccesses {
			b.state = Closed
			b.consecFail = 0
		}
	case Closed:
		if err != nil {
			b.consecFail++
			if b.consecFail >= b.cfg.FailureThreshold {
				b.tripLocked()
			}

			return
		}

		b.consecFail = 0
	}
}

func (b *Breaker[T]) tripLocked() {
	b.state = Open
	b.openedAt = time.Now()
	b.consecFail = 0
	b.consecHalfOK = 0
	b.halfOpenInFlight = false
}

// ForceOpen pins the breaker open regardless of observed call outcomes,
// until ForceClear is called. Intended for operator-driven admin control.
func (b *Breaker[T]) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forced = forcedOpen
	b.state = Open
	b.openedAt = time.Now()
}

// ForceClosed pins the breaker closed regardless of observed call outcomes,
// until ForceClear is called.
func (b *Breaker[T]) ForceClosed() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forced = forcedClosed
	b.state = Closed
	b.consecFail = 0
}

// ForceClear releases a prior ForceOpen/ForceClosed pin and resumes normal
// failure-driven state transitions from Closed.
func (b *Breaker[T]) ForceClear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forced = notForced
	b.state = Closed
	b.consecFail = 0
	b.consecHalfOK = 0
}
