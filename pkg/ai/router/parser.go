package router

import (
	"strings"

	"ai-editor-be/pkg/ai/intent"
)

// Directive prefixes let the user force a mode. Checked in order.
const (
	PrefixAsk     = "/ask"
	PrefixFind    = "/find"
	PrefixEdit    = "/edit"
	PrefixRewrite = "/rewrite"
)

var directives = []struct {
	prefix string
	mode   intent.Mode
}{
	{PrefixRewrite, intent.ModeFullRewrite},
	{PrefixEdit, intent.ModeTargetedUpdate},
	{PrefixFind, intent.ModeLocate},
	{PrefixAsk, intent.ModeInformational},
}

// ParsedPrompt contains routing information extracted from an instruction
type ParsedPrompt struct {
	OriginalPrompt string      // Full original instruction
	CleanPrompt    string      // Instruction without prefix
	ModeHint       intent.Mode // Empty when no directive was given
}

// Parse extracts a mode directive from the instruction
// Supports:
//   - /rewrite <instruction> → full_rewrite hint
//   - /edit <instruction>    → targeted_update hint
//   - /find <instruction>    → locate_highlight hint
//   - /ask <instruction>     → informational hint
//   - <instruction>          → no hint, the classifier decides
func Parse(prompt string) *ParsedPrompt {
	trimmed := strings.TrimSpace(prompt)
	lower := strings.ToLower(trimmed)

	for _, d := range directives {
		if !strings.HasPrefix(lower, d.prefix) {
			continue
		}
		rest := trimmed[len(d.prefix):]
		// "/editor" is not "/edit"
		if rest != "" && rest[0] != ' ' && rest[0] != ':' {
			continue
		}
		return &ParsedPrompt{
			OriginalPrompt: prompt,
			CleanPrompt:    strings.TrimSpace(strings.TrimPrefix(rest, ":")),
			ModeHint:       d.mode,
		}
	}

	return &ParsedPrompt{
		OriginalPrompt: prompt,
		CleanPrompt:    trimmed,
	}
}

// IsEmpty returns true if the clean prompt is empty
func (p *ParsedPrompt) IsEmpty() bool {
	return strings.TrimSpace(p.CleanPrompt) == ""
}
