package breaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return New("test", DefaultConfig(), nil).WithClock(clock.Now)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(newFakeClock())

	cb.RecordFailure("boom")
	cb.RecordFailure("boom")
	assert.Equal(t, StatusClosed, cb.Status())
	assert.True(t, cb.IsAllowed())

	cb.RecordFailure("boom")
	assert.Equal(t, StatusOpen, cb.Status())
	assert.False(t, cb.IsAllowed())
	assert.Equal(t, "boom", cb.Snapshot().LastFailureReason)
}

func TestCircuitBreaker_SuccessDecaysFailures(t *testing.T) {
	cb := newTestBreaker(newFakeClock())

	cb.RecordFailure("a")
	cb.RecordFailure("b")
	cb.RecordSuccess()
	assert.Equal(t, 1, cb.Snapshot().Failures)

	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.Snapshot().Failures)

	// two more failures stay below threshold after decay
	cb.RecordFailure("c")
	cb.RecordFailure("d")
	assert.Equal(t, StatusClosed, cb.Status())
}

func TestCircuitBreaker_HalfOpenLifecycle(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		cb.RecordFailure("fail")
	}
	require.Equal(t, StatusOpen, cb.Status())

	clock.Advance(59 * time.Second)
	assert.False(t, cb.IsAllowed())

	clock.Advance(time.Second)
	assert.True(t, cb.IsAllowed())
	assert.Equal(t, StatusHalfOpen, cb.Status())

	// second trial allowed, third rejected
	assert.True(t, cb.IsAllowed())
	assert.False(t, cb.IsAllowed())

	cb.RecordSuccess()
	assert.Equal(t, StatusClosed, cb.Status())
	assert.Equal(t, 0, cb.Snapshot().Failures)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		cb.RecordFailure("fail")
	}
	clock.Advance(time.Minute)
	require.True(t, cb.IsAllowed())

	cb.RecordFailure("still failing")
	assert.Equal(t, StatusOpen, cb.Status())
	assert.False(t, cb.IsAllowed())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := newTestBreaker(newFakeClock())
	for i := 0; i < 3; i++ {
		cb.RecordFailure("fail")
	}
	cb.Reset()

	snap := cb.Snapshot()
	assert.Equal(t, StatusClosed, snap.Status)
	assert.Equal(t, 0, snap.Failures)
	assert.Empty(t, snap.LastFailureReason)
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	changes := make(chan Status, 4)
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.OnStateChange = func(name string, from, to Status, reason string) {
		changes <- to
	}
	cb := New("hook", cfg, nil)

	cb.RecordFailure("x")

	select {
	case got := <-changes:
		assert.Equal(t, StatusOpen, got)
	case <-time.After(time.Second):
		t.Fatal("state change hook was not invoked")
	}
}

func TestCircuitBreaker_ConsecutiveFailuresProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("opens exactly when failures reach the threshold", prop.ForAll(
		func(failures int) bool {
			cb := newTestBreaker(newFakeClock())
			for i := 0; i < failures; i++ {
				cb.RecordFailure("fail")
			}
			return (cb.Status() == StatusOpen) == (failures >= DefaultConfig().FailureThreshold)
		},
		gen.IntRange(0, 10),
	))

	properties.Property("failure count never goes negative", prop.ForAll(
		func(outcomes []bool) bool {
			cb := newTestBreaker(newFakeClock())
			for _, ok := range outcomes {
				if ok {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure("fail")
				}
				if cb.Snapshot().Failures < 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestGuard_Success(t *testing.T) {
	cb := newTestBreaker(newFakeClock())
	cb.RecordFailure("earlier")

	res := Guard(context.Background(), cb, time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	assert.Equal(t, "ok", res.Value)
	assert.False(t, res.SafeModeUsed)
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, cb.Snapshot().Failures)
}

func TestGuard_TimeoutIsRecorded(t *testing.T) {
	cb := newTestBreaker(newFakeClock())

	res := Guard(context.Background(), cb, 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return 0, ctx.Err()
	})

	assert.True(t, res.TimedOut)
	assert.False(t, res.SafeModeUsed)
	assert.Error(t, res.Err)
	assert.Equal(t, ReasonTimeout, cb.Snapshot().LastFailureReason)
}

func TestGuard_OpeningFailureUsesSafeMode(t *testing.T) {
	cb := newTestBreaker(newFakeClock())
	cb.RecordFailure("a")
	cb.RecordFailure("b")

	res := Guard(context.Background(), cb, time.Second, func(ctx context.Context) (int, error) {
		return 0, errors.New("model unavailable")
	})

	assert.True(t, res.SafeModeUsed)
	assert.NoError(t, res.Err)
	assert.Equal(t, StatusOpen, cb.Status())
}

func TestGuard_OpenCircuitSkipsOperation(t *testing.T) {
	cb := newTestBreaker(newFakeClock())
	for i := 0; i < 3; i++ {
		cb.RecordFailure("fail")
	}

	called := false
	res := Guard(context.Background(), cb, time.Second, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})

	assert.False(t, called)
	assert.True(t, res.SafeModeUsed)
}

func TestGuard_RecoversPanic(t *testing.T) {
	cb := newTestBreaker(newFakeClock())

	res := Guard(context.Background(), cb, time.Second, func(ctx context.Context) (int, error) {
		panic("unexpected")
	})

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "unexpected")
	assert.Equal(t, 1, cb.Snapshot().Failures)
}

func TestTruncateReason_KeepsRunesWhole(t *testing.T) {
	reason := truncateReason(strings.Repeat("ñ", 250))

	assert.True(t, utf8.ValidString(reason))
	assert.Equal(t, strings.Repeat("ñ", 200)+"...", reason)
	assert.Equal(t, "short", truncateReason("short"))
}
