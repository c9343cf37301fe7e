// Package resilience implements the provider shell's two protective layers:
// a three-state circuit breaker and an exponential-backoff retry helper,
// narrowed to the simple failure-count state machine this system requires.
package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/gomind/core"
)

// CircuitState is one of CLOSED, OPEN, HALF_OPEN.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// MetricsCollector receives circuit breaker events for export (instrumentation.OTelProvider).
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string, errorType string)
	RecordStateChange(name string, from, to string)
	RecordRejection(name string)
}

type noopMetrics struct{}

func (n *noopMetrics) RecordSuccess(name string)                      {}
func (n *noopMetrics) RecordFailure(name string, errorType string)    {}
func (n *noopMetrics) RecordStateChange(name string, from, to string) {}
func (n *noopMetrics) RecordRejection(name string)                    {}

// CircuitBreakerConfig configures one provider's breaker. Defaults are
// spec.md §4.2's: FailureThreshold=5, ResetTimeout=60s, HalfOpenAttempts=1.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenAttempts int
	Logger           core.Logger
	Metrics          MetricsCollector
}

func DefaultConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		HalfOpenAttempts: 1,
		Logger:           &core.NoOpLogger{},
		Metrics:          &noopMetrics{},
	}
}

// CircuitBreaker implements the exact state table in spec.md §4.2:
//
//	CLOSED    --success-->                      CLOSED  (failureCount=0)
//	CLOSED    --failure-->                       CLOSED  (failureCount++)
//	CLOSED    --failure, count>=threshold-->      OPEN    (nextRetryAt=now+resetTimeout)
//	OPEN      --invocation, now<nextRetryAt-->    OPEN    (reject)
//	OPEN      --invocation, now>=nextRetryAt-->   HALF_OPEN (successCount=0)
//	HALF_OPEN --success-->                        HALF_OPEN (successCount++)
//	HALF_OPEN --successCount>=halfOpenAttempts--> CLOSED
//	HALF_OPEN --failure-->                        OPEN    (nextRetryAt=now+resetTimeout)
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu           sync.Mutex
	state        CircuitState
	failureCount int
	successCount int
	nextRetryAt  time.Time

	listeners []func(name string, from, to CircuitState)

	totalExecutions    atomic.Uint64
	rejectedExecutions atomic.Uint64
}

// NewCircuitBreaker creates a breaker starting CLOSED, per spec.md §4.2.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig("default")
	}
	if config.Name == "" {
		config.Name = "default"
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.HalfOpenAttempts <= 0 {
		config.HalfOpenAttempts = 1
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}

	return &CircuitBreaker{config: config, state: StateClosed}
}

// SetLogger rebinds the breaker's logger, tagging it with the component
// when the logger supports component scoping.
func (cb *CircuitBreaker) SetLogger(logger core.Logger) {
	if logger == nil {
		cb.config.Logger = &core.NoOpLogger{}
		return
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		cb.config.Logger = cal.WithComponent("ipintel/resilience")
	} else {
		cb.config.Logger = logger
	}
}

// Execute runs fn under breaker protection. It never panics to the caller:
// a panic inside fn is recovered and converted into the returned error, as
// every provider shell invocation in this system must (spec.md §4.1).
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		cb.rejectedExecutions.Add(1)
		cb.config.Metrics.RecordRejection(cb.config.Name)
		return fmt.Errorf("circuit breaker '%s' is open: %w", cb.config.Name, core.ErrCircuitBreakerOpen)
	}

	cb.totalExecutions.Add(1)

	err := cb.runProtected(fn)
	cb.onResult(err)
	return err
}

func (cb *CircuitBreaker) runProtected(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = fmt.Errorf("panic in circuit breaker '%s': %v\n%s", cb.config.Name, r, stack)
			cb.config.Logger.Error("Circuit breaker caught panic", map[string]interface{}{
				"name":  cb.config.Name,
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()
	return fn()
}

// allow checks whether an invocation may proceed and performs the
// OPEN->HALF_OPEN transition when the reset timeout has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Now().Before(cb.nextRetryAt) {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.successCount = 0
		return true
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) onResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.config.Metrics.RecordSuccess(cb.config.Name)
		switch cb.state {
		case StateClosed:
			cb.failureCount = 0
		case StateHalfOpen:
			cb.successCount++
			if cb.successCount >= cb.config.HalfOpenAttempts {
				cb.transition(StateClosed)
				cb.failureCount = 0
				cb.successCount = 0
			}
		}
		return
	}

	cb.config.Metrics.RecordFailure(cb.config.Name, fmt.Sprintf("%T", err))
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
			cb.nextRetryAt = time.Now().Add(cb.config.ResetTimeout)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
		cb.nextRetryAt = time.Now().Add(cb.config.ResetTimeout)
		cb.successCount = 0
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"name": cb.config.Name,
		"from": from.String(),
		"to":   to.String(),
	})
	cb.config.Metrics.RecordStateChange(cb.config.Name, from.String(), to.String())
	for _, l := range cb.listeners {
		go l(cb.config.Name, from, to)
	}
}

// AddStateChangeListener registers a callback invoked (in its own goroutine)
// on every state transition.
func (cb *CircuitBreaker) AddStateChangeListener(listener func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, listener)
}

// State returns the current CircuitState.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsHealthy reports whether the breaker is CLOSED, per spec.md §4.2.
func (cb *CircuitBreaker) IsHealthy() bool {
	return cb.State() == StateClosed
}

// Snapshot is the CircuitBreakerState value record from spec.md §3.
type Snapshot struct {
	State        string
	FailureCount int
	SuccessCount int
	NextRetryAt  *time.Time
}

// Snapshot returns a consistent point-in-time read of breaker state, for
// the /api/v1/providers admin surface.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := Snapshot{
		State:        cb.state.String(),
		FailureCount: cb.failureCount,
		SuccessCount: cb.successCount,
	}
	if cb.state == StateOpen {
		t := cb.nextRetryAt
		snap.NextRetryAt = &t
	}
	return snap
}

// Reset returns the breaker to CLOSED with zeroed counters (admin reset).
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.nextRetryAt = time.Time{}

	if oldState != StateClosed {
		cb.config.Logger.Info("Circuit breaker reset", map[string]interface{}{
			"name":           cb.config.Name,
			"previous_state": oldState.String(),
		})
	}
}

// Metrics returns raw counters for observability endpoints.
func (cb *CircuitBreaker) Metrics() map[string]interface{} {
	snap := cb.Snapshot()
	return map[string]interface{}{
		"name":                cb.config.Name,
		"state":               snap.State,
		"failure_count":       snap.FailureCount,
		"success_count":       snap.SuccessCount,
		"total_executions":    cb.totalExecutions.Load(),
		"rejected_executions": cb.rejectedExecutions.Load(),
	}
}
