package pipeline

import (
	"context"
	"errors"

	"ai-editor-be/pkg/ai/breaker"
	"ai-editor-be/pkg/ai/locale"
)

var (
	ErrClassificationTimeout = errors.New("classification timed out")
	ErrClassificationFailure = errors.New("classification failed")
	ErrValidationFailure     = errors.New("intent validation failed")
	ErrExecutionTimeout      = errors.New("execution timed out")
	ErrExecutionFailure      = errors.New("execution failed")
	ErrLockContention        = errors.New("compute lock held by another request")
	ErrUnknown               = errors.New("unexpected pipeline error")
)

// degradedMessage picks the apology that matches the failure
func degradedMessage(err error, language string) string {
	m := locale.For(language)
	switch {
	case errors.Is(err, breaker.ErrCircuitOpen):
		return m.SafeMode
	case errors.Is(err, ErrClassificationTimeout), errors.Is(err, ErrExecutionTimeout), errors.Is(err, context.DeadlineExceeded):
		return m.Timeout
	default:
		return m.Degraded
	}
}
