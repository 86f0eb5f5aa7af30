// Package breaker implements a per-service three-state circuit breaker:
// Closed -> Open on a failure-rate threshold over a sliding window,
// Open -> HalfOpen after a wait duration (triggered by a state read, not a
// background timer), HalfOpen -> Closed/Open on the outcome of a limited
// number of probe calls. Grounded on risk/circuit_breaker.go's
// tripped/cooldown two-state breaker, generalized to a three-state model
// (closed/open/half-open) with keyed-by-name usage.
package breaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State is one of the breaker's three states.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Config parametrizes a breaker instance.
type Config struct {
	FailureRateThreshold  float64       // e.g. 0.5 == trip at 50% failures
	WindowSize            int           // sliding window of most-recent outcomes
	MinCalls              int           // minimum calls in window before evaluating
	WaitDurationInOpen    time.Duration
	PermittedCallsInHalf  int
	CallTimeout           time.Duration
}

// DefaultConfig returns conservative defaults suitable for a broker call.
func DefaultConfig() Config {
	return Config{
		FailureRateThreshold: 0.5,
		WindowSize:           10,
		MinCalls:             5,
		WaitDurationInOpen:   30 * time.Second,
		PermittedCallsInHalf: 3,
		CallTimeout:          5 * time.Second,
	}
}

// CircuitOpenError is returned by Breaker.Allow when the breaker denies the
// call.
type CircuitOpenError struct{ Name string }

func (e *CircuitOpenError) Error() string { return "circuit open: " + e.Name }

// Breaker is a single named circuit breaker instance. All public methods are
// non-blocking.
type Breaker struct {
	mu sync.Mutex

	name   string
	config Config

	state        State
	window       []bool // true = success
	openedAt     time.Time
	halfOpenUsed int

	totalCalls    int64
	totalFailures int64
	transitions   int64
}

// New creates a Closed breaker with the given name and config.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		name:   name,
		config: cfg,
		state:  Closed,
	}
}

// State returns the current state. A read while Open and past
// WaitDurationInOpen transitions to HalfOpen as a side effect — state reads
// are the transition trigger.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionFromOpen()
	return b.state
}

func (b *Breaker) maybeTransitionFromOpen() {
	if b.state == Open && time.Since(b.openedAt) >= b.config.WaitDurationInOpen {
		b.state = HalfOpen
		b.halfOpenUsed = 0
		b.transitions++
		log.Info().Str("breaker", b.name).Msg("circuit half-open after wait duration")
	}
}

// IsCallPermitted reports whether a call may proceed right now, advancing
// Open->HalfOpen if the wait duration has elapsed.
func (b *Breaker) IsCallPermitted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionFromOpen()

	switch b.state {
	case Closed:
		return true
	case Open:
		return false
	case HalfOpen:
		return b.halfOpenUsed < b.config.PermittedCallsInHalf
	default:
		return false
	}
}

// Allow is IsCallPermitted expressed as an error, convenient at call sites
// that want to fail fast with a typed error.
func (b *Breaker) Allow() error {
	if !b.IsCallPermitted() {
		return &CircuitOpenError{Name: b.name}
	}
	return nil
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalCalls++

	switch b.state {
	case HalfOpen:
		b.halfOpenUsed++
		b.pushOutcome(true)
		if b.halfOpenUsed >= b.config.PermittedCallsInHalf {
			b.close()
		}
	default:
		b.pushOutcome(true)
		b.evaluateClosedWindow()
	}
}

// RecordFailure records a failed call outcome.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalCalls++
	b.totalFailures++

	switch b.state {
	case HalfOpen:
		b.open("half-open probe failed")
	default:
		b.pushOutcome(false)
		b.evaluateClosedWindow()
	}
}

func (b *Breaker) pushOutcome(success bool) {
	b.window = append(b.window, success)
	if len(b.window) > b.config.WindowSize {
		b.window = b.window[len(b.window)-b.config.WindowSize:]
	}
}

func (b *Breaker) evaluateClosedWindow() {
	if b.state != Closed || len(b.window) < b.config.MinCalls {
		return
	}
	failures := 0
	for _, ok := range b.window {
		if !ok {
			failures++
		}
	}
	rate := float64(failures) / float64(len(b.window))
	if rate >= b.config.FailureRateThreshold {
		b.open("failure rate threshold exceeded")
	}
}

func (b *Breaker) open(reason string) {
	b.state = Open
	b.openedAt = time.Now()
	b.transitions++
	log.Warn().Str("breaker", b.name).Str("reason", reason).Msg("circuit breaker opened")
}

func (b *Breaker) close() {
	b.state = Closed
	b.window = nil
	b.halfOpenUsed = 0
	b.transitions++
	log.Info().Str("breaker", b.name).Msg("circuit breaker closed")
}

// Metrics is a snapshot of the breaker's counters.
type Metrics struct {
	Name          string
	State         State
	TotalCalls    int64
	TotalFailures int64
	Transitions   int64
	FailureRate   float64
}

// Metrics returns a snapshot for observability.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionFromOpen()

	rate := 0.0
	if b.totalCalls > 0 {
		rate = float64(b.totalFailures) / float64(b.totalCalls)
	}
	return Metrics{
		Name:          b.name,
		State:         b.state,
		TotalCalls:    b.totalCalls,
		TotalFailures: b.totalFailures,
		Transitions:   b.transitions,
		FailureRate:   rate,
	}
}

// ForceReset manually returns the breaker to Closed, clearing its window.
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.close()
}

// Manager holds named breakers, created lazily, matching this engine-pack
// idiom of a per-service breaker map (cbManager.GetOrCreate in the
// BikeshR pi5-trading-system-go execution engine).
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   Config
}

// NewManager creates a manager that lazily constructs breakers with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{breakers: make(map[string]*Breaker), config: cfg}
}

// GetOrCreate returns the named breaker, creating it with the manager's
// default config on first use.
func (m *Manager) GetOrCreate(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}
	b := New(name, m.config)
	m.breakers[name] = b
	return b
}

// All returns a snapshot of every breaker's metrics, keyed by name.
func (m *Manager) All() map[string]Metrics {
	m.mu.Lock()
	names := make([]string, 0, len(m.breakers))
	breakers := make([]*Breaker, 0, len(m.breakers))
	for name, b := range m.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	m.mu.Unlock()

	out := make(map[string]Metrics, len(names))
	for i, name := range names {
		out[name] = breakers[i].Metrics()
	}
	return out
}
