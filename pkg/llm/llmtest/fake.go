// Package llmtest provides a scripted LLMProvider for tests.
package llmtest

import (
	"context"
	"sync"

	"ai-editor-be/pkg/llm"
)

// Call is one recorded request
type Call struct {
	Messages []llm.Message
	Options  llm.Options
}

// Provider answers with Reply, or with Respond when set
type Provider struct {
	Reply   string
	Err     error
	Respond func(ctx context.Context, messages []llm.Message) (string, error)

	mu    sync.Mutex
	calls []Call
}

var _ llm.LLMProvider = (*Provider)(nil)

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	var opts llm.Options
	for _, o := range options {
		o(&opts)
	}
	p.mu.Lock()
	p.calls = append(p.calls, Call{Messages: append([]llm.Message(nil), history...), Options: opts})
	p.mu.Unlock()

	if p.Respond != nil {
		return p.Respond(ctx, history)
	}
	return p.Reply, p.Err
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

// Calls returns a copy of the recorded requests
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Last returns the most recent request
func (p *Provider) Last() Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return Call{}
	}
	return p.calls[len(p.calls)-1]
}
