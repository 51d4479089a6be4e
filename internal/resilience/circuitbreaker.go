// Package resilience keeps the chat proxy answering when an upstream model
// vendor misbehaves.
//
// [Breaker] guards a single upstream with the closed/open/half-open state
// machine. [Chain] orders several upstreams of the same kind behind their own
// breakers and walks them until one serves the call. [LLMChain] is the
// llm.Provider built on top of a Chain.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the cool-down has elapsed.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels log lines and state-change notifications.
	Name string

	// MaxFailures is the number of consecutive failures that trips the
	// breaker. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls required to close
	// again. Default: 2.
	Probes int

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probes      int
	notify      func(name string, from, to State)
	now         func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	succeeded int
}

// NewBreaker creates a [Breaker]. Zero-value fields in cfg get defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 2
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		probes:      cfg.Probes,
		notify:      cfg.OnStateChange,
		now:         time.Now,
	}
}

// Name returns the label the breaker was created with.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the breaker is rejecting calls, in which case it
// returns [ErrCircuitOpen] without invoking fn.
func (b *Breaker) Execute(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	callErr := fn()
	b.settle(probe, callErr)
	return callErr
}

// admit decides whether a call may proceed and reports whether it is a probe.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	var from State
	transitioned := false

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		from, transitioned = b.state, true
		b.state = StateHalfOpen
		b.inFlight = 0
		b.succeeded = 0
	case StateHalfOpen:
		if b.inFlight >= b.probes {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
	}

	probe := b.state == StateHalfOpen
	if probe {
		b.inFlight++
	}
	b.mu.Unlock()

	if transitioned {
		b.changed(from, StateHalfOpen)
	}
	return probe, nil
}

func (b *Breaker) settle(probe bool, callErr error) {
	b.mu.Lock()
	from := b.state
	to := from

	switch {
	case callErr != nil && probe:
		b.trip()
		to = StateOpen
	case callErr != nil:
		b.failures++
		if b.failures >= b.maxFailures {
			b.trip()
			to = StateOpen
		}
	case probe:
		b.inFlight--
		b.succeeded++
		if b.succeeded >= b.probes {
			b.state = StateClosed
			b.failures = 0
			to = StateClosed
		}
	default:
		b.failures = 0
	}
	b.mu.Unlock()

	if to != from {
		b.changed(from, to)
	}
}

// trip opens the breaker. Caller holds b.mu.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.inFlight = 0
	b.succeeded = 0
}

func (b *Breaker) changed(from, to State) {
	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		"name", b.name, "from", from.String(), "to", to.String())
	if b.notify != nil {
		b.notify(b.name, from, to)
	}
}

// State reports the current state. An open breaker whose cool-down has elapsed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.inFlight = 0
	b.succeeded = 0
	b.mu.Unlock()

	if from != StateClosed {
		b.changed(from, StateClosed)
	}
}
