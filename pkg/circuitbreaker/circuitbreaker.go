// Package circuitbreaker shields the vetting pipeline from degraded
// upstreams. A breaker sits in front of the email gateway and the mentor
// account directory; once an upstream fails repeatedly the breaker opens
// and rejects calls outright until a probe succeeds, so approvals and
// invitations fail fast instead of queueing behind timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker: closed passes calls, open rejects them, half-open
// lets a bounded number of probes through.
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

var (
	// ErrCircuitOpen rejects a call while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests rejects calls beyond the half-open probe budget.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config tunes one breaker.
type Config struct {
	// Name appears in state-change notifications and logs.
	Name string

	// FailureThreshold is the consecutive-failure count that opens a
	// closed breaker.
	FailureThreshold int

	// SuccessThreshold is the consecutive-success count that closes a
	// half-open breaker.
	SuccessThreshold int

	// Timeout is how long an open breaker waits before allowing probes.
	Timeout time.Duration

	// MaxProbes bounds concurrent calls while half-open.
	MaxProbes int

	// OnStateChange is invoked outside hot paths on every transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to one upstream.
type CircuitBreaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	consecutiveOK   int
	consecutiveFail int
	probesInFlight  int
	lastFailureAt   time.Time
}

// New builds a breaker, filling zero Config fields with usable values.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = 1
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Execute runs fn when the breaker allows it and records the outcome.
// The error returned by fn passes through unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastFailureAt) < cb.cfg.Timeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probesInFlight = 1
		return nil

	case StateHalfOpen:
		if cb.probesInFlight >= cb.cfg.MaxProbes {
			return ErrTooManyRequests
		}
		cb.probesInFlight++
		return nil

	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.consecutiveFail++
		cb.consecutiveOK = 0
		cb.lastFailureAt = time.Now()

		switch cb.state {
		case StateClosed:
			if cb.consecutiveFail >= cb.cfg.FailureThreshold {
				cb.transition(StateOpen)
			}
		case StateHalfOpen:
			// A failed probe reopens immediately.
			cb.transition(StateOpen)
		}
		return
	}

	cb.consecutiveOK++
	cb.consecutiveFail = 0
	if cb.state == StateHalfOpen && cb.consecutiveOK >= cb.cfg.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

// transition is called with cb.mu held.
func (cb *CircuitBreaker) transition(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.consecutiveOK = 0
	cb.consecutiveFail = 0
	cb.probesInFlight = 0

	if cb.cfg.OnStateChange != nil {
		go cb.cfg.OnStateChange(cb.cfg.Name, prev, next)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Preset breakers
// ──────────────────────────────────────────────────────────────────────────────

// EmailBreaker guards the email gateway. Tolerant thresholds: mail
// delivery is best-effort and retried anyway.
func EmailBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Config{
		Name:             "email-gateway",
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          60 * time.Second,
		MaxProbes:        2,
		OnStateChange:    onStateChange,
	})
}

// ProvisioningBreaker guards the account directory. Conservative: a
// failed provisioning blocks an approval, so back off fast and probe
// carefully.
func ProvisioningBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Config{
		Name:             "account-directory",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxProbes:        1,
		OnStateChange:    onStateChange,
	})
}
