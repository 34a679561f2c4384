// Package classifier turns an instruction into a loosely typed intent with one model call.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/ai/prompt"
	"ai-editor-be/pkg/llm"
)

// Config tunes the model call
type Config struct {
	Model     string // optional override of the provider default
	MaxTokens int
}

// Classifier implements pipeline.Classifier.
// It does not answer the instruction; it only describes it.
type Classifier struct {
	llmProvider llm.LLMProvider
	config      Config
	logger      logger.ILogger
}

var _ pipeline.Classifier = (*Classifier)(nil)

// New creates an LLM-backed classifier
func New(llmProvider llm.LLMProvider, config Config, log logger.ILogger) *Classifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 400
	}
	return &Classifier{llmProvider: llmProvider, config: config, logger: log}
}

// Classify returns provider errors as-is so the breaker sees them.
// Output that is not JSON yields an empty payload, which validation turns into a fallback.
func (c *Classifier) Classify(ctx context.Context, in pipeline.ClassifyInput) (*intent.RawPayload, error) {
	opts := []llm.Option{
		llm.WithTemperature(0.0),
		llm.WithMaxTokens(c.config.MaxTokens),
		llm.WithJSONMode(),
	}
	if c.config.Model != "" {
		opts = append(opts, llm.WithModel(c.config.Model))
	}

	response, err := c.llmProvider.Generate(ctx, BuildPrompt(in), opts...)
	if err != nil {
		return nil, fmt.Errorf("classifier call: %w", err)
	}

	raw, err := intent.ParseRaw(response)
	if err != nil {
		c.logger.Warn("CLASSIFIER", "Unparseable classifier output", map[string]interface{}{
			"error":    err.Error(),
			"response": truncate(response, 200),
		})
		return &intent.RawPayload{Reasoning: "unparseable classifier output"}, nil
	}

	// a directive is explicit; fill it in when the model left the mode out
	if raw.Mode == nil && in.ModeHint != "" {
		mode := string(in.ModeHint)
		raw.Mode = &mode
	}

	mode := ""
	if raw.Mode != nil {
		mode = *raw.Mode
	}
	c.logger.Debug("CLASSIFIER", "Classified", map[string]interface{}{
		"mode":       mode,
		"confidence": raw.Confidence,
		"targets":    raw.TargetParagraphs,
	})
	return raw, nil
}

// BuildPrompt renders the classification prompt
func BuildPrompt(in pipeline.ClassifyInput) string {
	var b prompt.Builder

	b.Section("system", "You are an intent analyzer for a document editor. Your ONLY job is to understand what the user wants to DO with their document.\n"+
		"You do NOT answer questions and you do NOT edit text. You only classify the instruction.")

	b.Document(in.Document.Paragraphs, in.Document.Total, in.Document.Truncated)
	b.IDs("selected_paragraphs", in.Selection)
	b.IDs("referenced_paragraphs", in.References)
	b.IDs("recently_discussed_paragraphs", in.Mentioned)
	b.History(in.History)

	if in.ModeHint != "" {
		b.Section("mode_hint", fmt.Sprintf("The user explicitly asked for mode %q. Use it unless it is impossible.", in.ModeHint))
	}

	b.Section("user_instruction", in.Instruction)

	b.Section("mode_definitions", strings.Join([]string{
		"informational: the user asks a question about the document or wants an explanation. Nothing changes.",
		"locate_highlight: the user wants to FIND spans (errors, mentions, phrases) and see them highlighted. Nothing changes.",
		"targeted_update: the user wants to change SPECIFIC paragraphs. target_paragraphs is required.",
		"full_rewrite: the user wants broad changes across most of the document (tone, style, restructure).",
	}, "\n"))

	b.Section("field_rules", strings.Join([]string{
		"target_paragraphs: paragraph ids from the document, in order of relevance. Use the selected or referenced ids when the instruction says 'this', 'here' or 'it'.",
		"modification: for editing modes only. One of correction, improvement, tone_change, expansion, condensation, restructure.",
		"tone: only for tone_change. One of formal, informal, neutral.",
		"risk_level: low for read-only modes, medium for targeted edits, high for broad rewrites.",
		"scope: selection, paragraphs or document.",
		"confidence: 0.0 to 1.0. Be honest; vague instructions deserve low confidence.",
		"language: the language of the instruction, " + prompt.LanguageName(in.Language) + " (" + in.Language + ") unless clearly otherwise.",
	}, "\n"))

	b.Section("output_format", "Respond with ONLY valid JSON:\n"+
		"{\n"+
		"  \"mode\": \"informational|locate_highlight|targeted_update|full_rewrite\",\n"+
		"  \"secondary_mode\": null,\n"+
		"  \"confidence\": 0.9,\n"+
		"  \"target_paragraphs\": [0],\n"+
		"  \"context_paragraphs\": [],\n"+
		"  \"modification\": \"correction\",\n"+
		"  \"tone\": null,\n"+
		"  \"risk_level\": \"medium\",\n"+
		"  \"scope\": \"paragraphs\",\n"+
		"  \"language\": \""+in.Language+"\",\n"+
		"  \"reasoning\": \"Brief explanation\"\n"+
		"}")

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
