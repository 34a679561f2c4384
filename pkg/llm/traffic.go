package llm

import (
	"context"
	"time"

	"ai-editor-be/internal/pkg/logger"
)

// TrafficLogger records every prompt and reply of the wrapped provider
type TrafficLogger struct {
	next   LLMProvider
	logger logger.ILogger
}

var _ LLMProvider = (*TrafficLogger)(nil)

func NewTrafficLogger(next LLMProvider, log logger.ILogger) *TrafficLogger {
	return &TrafficLogger{next: next, logger: log}
}

func (t *TrafficLogger) Chat(ctx context.Context, history []Message, opts ...Option) (string, error) {
	start := time.Now()
	reply, err := t.next.Chat(ctx, history, opts...)
	t.record("chat", history, ApplyOptions(Options{}, opts...), reply, err, time.Since(start))
	return reply, err
}

func (t *TrafficLogger) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	start := time.Now()
	reply, err := t.next.Generate(ctx, prompt, opts...)
	t.record("generate", []Message{{Role: RoleUser, Content: prompt}}, ApplyOptions(Options{}, opts...), reply, err, time.Since(start))
	return reply, err
}

func (t *TrafficLogger) record(call string, messages []Message, opts Options, reply string, err error, took time.Duration) {
	details := map[string]interface{}{
		"call":        call,
		"model":       opts.Model,
		"json":        opts.JSONMode,
		"messages":    messages,
		"reply":       reply,
		"duration_ms": took.Milliseconds(),
	}
	if err != nil {
		details["error"] = err.Error()
		t.logger.Error("LLM", "Model call failed", details)
		return
	}
	t.logger.Info("LLM", "Model call", details)
}
