package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/ai/prompt"
	"ai-editor-be/pkg/llm"
)

// Config tunes executor model calls
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{Temperature: 0.3, MaxTokens: 1500}
}

// NewLLMRegistry wires one model-backed executor per mode
func NewLLMRegistry(provider llm.LLMProvider, config Config, log logger.ILogger) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	base := llmExecutor{provider: provider, config: config, logger: log}
	return &Registry{
		Informational:  &InformationalExecutor{base},
		Locate:         &LocateExecutor{base},
		TargetedUpdate: &EditExecutor{llmExecutor: base, mode: intent.ModeTargetedUpdate},
		FullRewrite:    &EditExecutor{llmExecutor: base, mode: intent.ModeFullRewrite},
	}
}

type llmExecutor struct {
	provider llm.LLMProvider
	config   Config
	logger   logger.ILogger
}

// chat sends system + history + user, the same shape for every mode
func (e llmExecutor) chat(ctx context.Context, system, user string, history []llm.Message, jsonMode bool) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: user})

	opts := []llm.Option{
		llm.WithTemperature(e.config.Temperature),
		llm.WithMaxTokens(e.config.MaxTokens),
	}
	if e.config.Model != "" {
		opts = append(opts, llm.WithModel(e.config.Model))
	}
	if jsonMode {
		opts = append(opts, llm.WithJSONMode())
	}

	e.logger.Debug("EXECUTOR", "Calling model", map[string]interface{}{"messages": len(messages), "json": jsonMode})
	reply, err := e.provider.Chat(ctx, messages, opts...)
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) && statusErr.Overloaded() {
		e.logger.Warn("EXECUTOR", "Model backend overloaded", map[string]interface{}{
			"provider": statusErr.Provider,
			"status":   statusErr.StatusCode,
		})
	}
	return reply, err
}

func systemPrompt(task string, in pipeline.ExecuteInput) string {
	var b prompt.Builder
	b.Section("task", task)
	b.Section("language", "Always reply in "+prompt.LanguageName(in.Intent.Language)+".")
	return b.String()
}

func userPrompt(in pipeline.ExecuteInput, extra func(b *prompt.Builder)) string {
	var b prompt.Builder
	b.Document(in.Document.Paragraphs, in.Document.Total, in.Document.Truncated)
	b.IDs("target_paragraphs", in.Intent.TargetParagraphs)
	if extra != nil {
		extra(&b)
	}
	b.Section("user_instruction", in.Instruction)
	return b.String()
}

// InformationalExecutor answers in plain text
type InformationalExecutor struct{ llmExecutor }

func (e *InformationalExecutor) Execute(ctx context.Context, in pipeline.ExecuteInput) (intent.ModeResult, error) {
	system := systemPrompt("You are a writing assistant answering questions about the user's document.\n"+
		"Base your answer strictly on the document. If it does not contain the answer, say so honestly.\n"+
		"Never claim to have changed the document.", in)

	reply, err := e.chat(ctx, system, userPrompt(in, nil), prompt.Messages(in.History), false)
	if err != nil {
		return intent.ModeResult{}, fmt.Errorf("informational executor: %w", err)
	}
	return intent.ModeResult{Mode: intent.ModeInformational, Reply: strings.TrimSpace(reply)}, nil
}

// LocateExecutor returns highlights quoted from the document
type LocateExecutor struct{ llmExecutor }

type locateOutput struct {
	Reply      string             `json:"reply"`
	Highlights []intent.Highlight `json:"highlights"`
}

func (e *LocateExecutor) Execute(ctx context.Context, in pipeline.ExecuteInput) (intent.ModeResult, error) {
	system := systemPrompt("You find passages in the user's document. You never change text.\n"+
		"Every highlight must quote text that appears EXACTLY in the paragraph it names.\n"+
		"Respond with ONLY valid JSON:\n"+
		`{"reply": "one short sentence", "highlights": [{"paragraph_id": 0, "text": "exact quote", "reason": "why"}]}`, in)

	response, err := e.chat(ctx, system, userPrompt(in, nil), prompt.Messages(in.History), true)
	if err != nil {
		return intent.ModeResult{}, fmt.Errorf("locate executor: %w", err)
	}

	var out locateOutput
	if err := decodeJSON(response, &out); err != nil {
		return intent.ModeResult{}, fmt.Errorf("locate executor: %w", err)
	}
	return intent.ModeResult{Mode: intent.ModeLocate, Reply: strings.TrimSpace(out.Reply), Highlights: out.Highlights}, nil
}

// EditExecutor proposes find/replace edits for targeted updates and full rewrites
type EditExecutor struct {
	llmExecutor
	mode intent.Mode
}

type editOutput struct {
	Reply string        `json:"reply"`
	Edits []intent.Edit `json:"edits"`
}

func (e *EditExecutor) Execute(ctx context.Context, in pipeline.ExecuteInput) (intent.ModeResult, error) {
	scope := "Edit ONLY the target paragraphs."
	if e.mode == intent.ModeFullRewrite {
		scope = "You may edit any paragraph of the document."
	}
	system := systemPrompt("You are an editor proposing precise changes to the user's document.\n"+
		scope+"\n"+
		"Each edit replaces one exact quote from a paragraph. \"original\" must appear verbatim in that paragraph.\n"+
		"Keep edits small and never overlapping. Do not invent content the user did not ask for.\n"+
		"Respond with ONLY valid JSON:\n"+
		`{"reply": "one short summary", "edits": [{"paragraph_id": 0, "original": "exact quote", "replacement": "new text", "reason": "why"}]}`, in)

	user := userPrompt(in, func(b *prompt.Builder) {
		b.Section("modification", string(in.Intent.ModificationOr(intent.DefaultEditingKind)))
		if in.Intent.Tone != nil {
			b.Section("tone", *in.Intent.Tone)
		}
	})

	response, err := e.chat(ctx, system, user, prompt.Messages(in.History), true)
	if err != nil {
		return intent.ModeResult{}, fmt.Errorf("%s executor: %w", e.mode, err)
	}

	var out editOutput
	if err := decodeJSON(response, &out); err != nil {
		return intent.ModeResult{}, fmt.Errorf("%s executor: %w", e.mode, err)
	}
	return intent.ModeResult{Mode: e.mode, Reply: strings.TrimSpace(out.Reply), Edits: out.Edits}, nil
}

// decodeJSON tolerates markdown fences and prose around the object
func decodeJSON(response string, v any) error {
	cleaned := strings.TrimSpace(response)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON found in response")
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	return nil
}
