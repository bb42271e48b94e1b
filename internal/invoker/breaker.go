package invoker

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// State represents a circuit breaker's position in its lifecycle.
type State string

// Breaker states.
const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// BreakerConfig holds circuit breaker thresholds shared by all services.
type BreakerConfig struct {
	FailureThreshold int    `toml:"failure_threshold"`
	SuccessThreshold int    `toml:"success_threshold"`
	RecoveryTimeout  string `toml:"recovery_timeout"`
}

// RecoveryTimeoutDuration returns RecoveryTimeout as a time.Duration.
func (c *BreakerConfig) RecoveryTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RecoveryTimeout)
	return d
}

// BreakerEnv maps config fields to environment variable names for override injection.
type BreakerEnv struct {
	FailureThreshold string
	SuccessThreshold string
	RecoveryTimeout  string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *BreakerConfig) Finalize(env *BreakerEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *BreakerConfig) Merge(overlay *BreakerConfig) {
	if overlay.FailureThreshold != 0 {
		c.FailureThreshold = overlay.FailureThreshold
	}
	if overlay.SuccessThreshold != 0 {
		c.SuccessThreshold = overlay.SuccessThreshold
	}
	if overlay.RecoveryTimeout != "" {
		c.RecoveryTimeout = overlay.RecoveryTimeout
	}
}

func (c *BreakerConfig) loadDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 2
	}
	if c.RecoveryTimeout == "" {
		c.RecoveryTimeout = "60s"
	}
}

func (c *BreakerConfig) loadEnv(env *BreakerEnv) {
	if env.FailureThreshold != "" {
		if v := os.Getenv(env.FailureThreshold); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.FailureThreshold = n
			}
		}
	}
	if env.SuccessThreshold != "" {
		if v := os.Getenv(env.SuccessThreshold); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.SuccessThreshold = n
			}
		}
	}
	if env.RecoveryTimeout != "" {
		if v := os.Getenv(env.RecoveryTimeout); v != "" {
			c.RecoveryTimeout = v
		}
	}
}

func (c *BreakerConfig) validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if c.SuccessThreshold < 1 {
		return fmt.Errorf("success_threshold must be positive")
	}
	if _, err := time.ParseDuration(c.RecoveryTimeout); err != nil {
		return fmt.Errorf("invalid recovery_timeout: %w", err)
	}
	return nil
}

// Breaker guards a single external service. Transitions are serialized by a
// mutex so that concurrent workers tripping the same service race safely:
// the first failure past the threshold wins the CLOSED→OPEN transition and
// later failures against an already-open breaker are no-ops.
type Breaker struct {
	mu        sync.Mutex
	service   string
	state     State
	failures  int
	successes int
	probing   bool
	openedAt  time.Time

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	now func() time.Time
}

// NewBreaker creates a closed breaker for the named service.
func NewBreaker(service string, cfg BreakerConfig) *Breaker {
	return &Breaker{
		service:          service,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		recoveryTimeout:  cfg.RecoveryTimeoutDuration(),
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While OPEN it fails fast with
// CircuitBreakerError until the recovery timeout elapses, then moves to
// HALF_OPEN and admits a single trial call at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.recoveryTimeout {
			return &CircuitBreakerError{
				Service:    b.service,
				RetryAfter: b.recoveryTimeout - elapsed,
			}
		}
		b.state = StateHalfOpen
		b.successes = 0
		b.probing = true
		return nil
	default: // HALF_OPEN
		if b.probing {
			return &CircuitBreakerError{Service: b.service}
		}
		b.probing = true
		return nil
	}
}

// Success records a successful call, resetting the consecutive failure count.
// In HALF_OPEN, reaching the success threshold closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0

	if b.state == StateHalfOpen {
		b.probing = false
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.successes = 0
		}
	}
}

// Failure records a failed call. Reaching the failure threshold while CLOSED
// opens the breaker; any failure while HALF_OPEN reopens it immediately.
// Failures against an already-open breaker are ignored.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		return
	case StateHalfOpen:
		b.probing = false
		b.open()
	default:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.open()
		}
	}
}

// open transitions to OPEN. Caller must hold b.mu.
func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.successes = 0
}

// Reset returns the breaker to CLOSED with cleared counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probing = false
}

// BreakerStatus is a point-in-time view of a breaker for the admin surface.
type BreakerStatus struct {
	Service             string     `json:"service"`
	State               State      `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// Status returns a snapshot of the breaker's current state.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := BreakerStatus{
		Service:             b.service,
		State:               b.state,
		ConsecutiveFailures: b.failures,
	}
	if b.state == StateOpen {
		openedAt := b.openedAt
		s.OpenedAt = &openedAt
	}
	return s
}
