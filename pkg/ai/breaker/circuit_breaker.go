// Package breaker guards calls to the language model behind a 3-state circuit breaker.
package breaker

import (
	"sync"
	"time"

	"ai-editor-be/internal/pkg/logger"
)

// Status is the circuit breaker state
type Status string

const (
	StatusClosed   Status = "closed"    // Normal operation, calls flow through
	StatusOpen     Status = "open"      // Tripped, calls are short-circuited to safe mode
	StatusHalfOpen Status = "half_open" // Probing recovery with a limited number of trial calls
)

// Config configures thresholds and timeouts
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// RecoveryTimeout is how long after the last failure an open circuit starts probing
	RecoveryTimeout time.Duration
	// HalfOpenMaxCalls bounds the trial calls allowed while half-open
	HalfOpenMaxCalls int
	// OnStateChange is invoked asynchronously after every transition
	OnStateChange func(name string, from, to Status, reason string)
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// CircuitBreaker is a process-wide health guard around external calls.
//
// Usage:
//
//	if cb.IsAllowed() {
//	    if err := call(); err != nil {
//	        cb.RecordFailure(err.Error())
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
type CircuitBreaker struct {
	name   string
	config Config
	logger logger.ILogger
	now    func() time.Time

	mu                sync.Mutex
	status            Status
	failures          int
	halfOpenCalls     int
	lastFailureReason string
	lastFailureAt     time.Time
	lastStateChange   time.Time
}

// Snapshot is a point-in-time view used for diagnostics
type Snapshot struct {
	Name              string    `json:"name"`
	Status            Status    `json:"status"`
	Failures          int       `json:"failures"`
	HalfOpenCalls     int       `json:"half_open_calls"`
	LastFailureReason string    `json:"last_failure_reason,omitempty"`
	LastFailureAt     time.Time `json:"last_failure_at,omitempty"`
	LastStateChange   time.Time `json:"last_state_change"`
}

// New creates a closed circuit breaker
func New(name string, config Config, log logger.ILogger) *CircuitBreaker {
	defaults := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = defaults.HalfOpenMaxCalls
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	cb := &CircuitBreaker{
		name:   name,
		config: config,
		logger: log,
		now:    time.Now,
		status: StatusClosed,
	}
	cb.lastStateChange = cb.now()
	return cb
}

// WithClock replaces the time source; intended for tests
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
	cb.lastStateChange = now()
	return cb
}

// IsAllowed reports whether a call may proceed.
// An open circuit whose recovery timeout has elapsed moves to half-open and admits the call.
func (cb *CircuitBreaker) IsAllowed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.status {
	case StatusClosed:
		return true

	case StatusOpen:
		if cb.now().Sub(cb.lastFailureAt) >= cb.config.RecoveryTimeout {
			cb.transitionTo(StatusHalfOpen, "recovery timeout elapsed")
			cb.halfOpenCalls = 1
			return true
		}
		return false

	case StatusHalfOpen:
		if cb.halfOpenCalls < cb.config.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	}
	return false
}

// RecordSuccess closes a half-open circuit or decays the failure count of a closed one
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.status {
	case StatusClosed:
		if cb.failures > 0 {
			cb.failures--
		}
	case StatusHalfOpen:
		cb.transitionTo(StatusClosed, "trial call succeeded")
	}
}

// RecordFailure counts a failure and opens the circuit when the threshold is reached
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.recordFailure(reason)
}

// recordFailure returns the status after bookkeeping
func (cb *CircuitBreaker) recordFailure(reason string) Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureReason = reason
	cb.lastFailureAt = cb.now()

	switch cb.status {
	case StatusClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StatusOpen, reason)
		}
	case StatusHalfOpen:
		cb.transitionTo(StatusOpen, reason)
	}
	return cb.status
}

// Reset forces the circuit closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transitionTo(StatusClosed, "reset")
	cb.failures = 0
	cb.lastFailureReason = ""
}

// Status returns the current state without triggering transitions
func (cb *CircuitBreaker) Status() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.status
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		Name:              cb.name,
		Status:            cb.status,
		Failures:          cb.failures,
		HalfOpenCalls:     cb.halfOpenCalls,
		LastFailureReason: cb.lastFailureReason,
		LastFailureAt:     cb.lastFailureAt,
		LastStateChange:   cb.lastStateChange,
	}
}

// transitionTo changes state (must hold lock)
func (cb *CircuitBreaker) transitionTo(next Status, reason string) {
	if cb.status == next {
		return
	}

	prev := cb.status
	cb.status = next
	cb.lastStateChange = cb.now()
	cb.halfOpenCalls = 0

	if next == StatusClosed {
		cb.failures = 0
	}

	details := map[string]interface{}{
		"breaker":  cb.name,
		"from":     prev,
		"to":       next,
		"reason":   reason,
		"failures": cb.failures,
	}
	if next == StatusOpen {
		cb.logger.Warn("BREAKER", "Circuit opened", details)
	} else {
		cb.logger.Info("BREAKER", "Circuit state changed", details)
	}

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.name, prev, next, reason)
	}
}
