package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is reported as the reason when a call is short-circuited
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Failure reasons recorded against the breaker
const (
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
	ReasonPanic     = "panic"
)

// GuardResult is the outcome of a guarded call.
// When SafeModeUsed is true Value is the zero value and callers must serve a degraded response.
type GuardResult[T any] struct {
	Value        T
	SafeModeUsed bool
	TimedOut     bool
	Reason       string
	Err          error
}

type guardOutcome[T any] struct {
	value T
	err   error
}

// Guard runs op under the breaker with a per-call timeout.
// A zero timeout only inherits the parent context deadline.
// Failures that open the circuit are converted into safe mode instead of an error.
func Guard[T any](ctx context.Context, cb *CircuitBreaker, timeout time.Duration, op func(ctx context.Context) (T, error)) GuardResult[T] {
	var result GuardResult[T]

	if !cb.IsAllowed() {
		result.SafeModeUsed = true
		result.Reason = ErrCircuitOpen.Error()
		return result
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan guardOutcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- guardOutcome[T]{err: fmt.Errorf("%s: %v", ReasonPanic, r)}
			}
		}()
		v, err := op(callCtx)
		done <- guardOutcome[T]{value: v, err: err}
	}()

	var err error
	select {
	case out := <-done:
		if out.err == nil {
			cb.RecordSuccess()
			result.Value = out.value
			return result
		}
		err = out.err
		result.Reason = truncateReason(out.err.Error())
		if errors.Is(out.err, context.DeadlineExceeded) {
			result.TimedOut = true
			result.Reason = ReasonTimeout
		}

	case <-callCtx.Done():
		err = callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			result.TimedOut = true
			result.Reason = ReasonTimeout
		} else {
			result.Reason = ReasonCancelled
		}
	}

	if cb.recordFailure(result.Reason) == StatusOpen {
		result.SafeModeUsed = true
		return result
	}
	result.Err = err
	return result
}

func truncateReason(s string) string {
	const limit = 200
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
