// Package executor produces the mode-specific result for a routed intent.
package executor

import (
	"context"
	"errors"
	"fmt"

	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
)

// ErrUnknownMode is returned for a mode without an executor
var ErrUnknownMode = errors.New("no executor for mode")

// Executor handles one mode
type Executor interface {
	Execute(ctx context.Context, in pipeline.ExecuteInput) (intent.ModeResult, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, in pipeline.ExecuteInput) (intent.ModeResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, in pipeline.ExecuteInput) (intent.ModeResult, error) {
	return f(ctx, in)
}

// Registry dispatches on the intent mode; every mode has exactly one executor
type Registry struct {
	Informational  Executor
	Locate         Executor
	TargetedUpdate Executor
	FullRewrite    Executor
}

var _ pipeline.ExecutorRegistry = (*Registry)(nil)

// Execute runs the executor for in.Intent.Mode and tags the result with that mode
func (r *Registry) Execute(ctx context.Context, in pipeline.ExecuteInput) (intent.ModeResult, error) {
	var ex Executor
	switch in.Intent.Mode {
	case intent.ModeInformational:
		ex = r.Informational
	case intent.ModeLocate:
		ex = r.Locate
	case intent.ModeTargetedUpdate:
		ex = r.TargetedUpdate
	case intent.ModeFullRewrite:
		ex = r.FullRewrite
	default:
		return intent.ModeResult{}, fmt.Errorf("%w: %q", ErrUnknownMode, in.Intent.Mode)
	}
	if ex == nil {
		return intent.ModeResult{}, fmt.Errorf("%w: %q not configured", ErrUnknownMode, in.Intent.Mode)
	}

	out, err := ex.Execute(ctx, in)
	if err != nil {
		return intent.ModeResult{}, err
	}
	if out.Mode == "" {
		out.Mode = in.Intent.Mode
	}
	return out, nil
}
