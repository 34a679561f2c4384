// Package router decides what happens to a validated intent: run it, ask, confirm or degrade.
package router

import (
	"context"
	"slices"
	"strconv"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/locale"
	"ai-editor-be/pkg/ai/session"
)

// Action is the routing outcome
type Action string

const (
	ActionExecute  Action = "execute"
	ActionClarify  Action = "clarify"
	ActionConfirm  Action = "confirm"
	ActionFallback Action = "fallback"
)

const (
	// BroadRewriteRatio is the share of targeted paragraphs above which a rewrite needs confirmation
	BroadRewriteRatio = 0.5
	// MaxParagraphOptions bounds the paragraph previews offered in a clarification
	MaxParagraphOptions = 5

	reasonTargetsGone = "targets_out_of_range"
)

// Input is everything the router needs about one request
type Input struct {
	SessionID  string
	Intent     intent.Payload
	Paragraphs []intent.Paragraph
	Selection  []int // paragraph ids covered by the editor selection
	Mentioned  []int // recently mentioned paragraph ids, oldest first
}

// Decision is the routing result. Question and Options are set for clarify and confirm.
type Decision struct {
	Action   Action
	Intent   intent.Payload
	Question string
	Options  []session.Option
	Missing  session.MissingParam
	Reason   string
}

// PendingWriter persists clarification requests
type PendingWriter interface {
	SetPendingIntent(ctx context.Context, sessionID string, original intent.Payload, missing session.MissingParam, options []session.Option) (*session.PendingIntent, error)
}

// Router handles confidence gating for validated intents
type Router struct {
	thresholds intent.Thresholds
	pending    PendingWriter
	logger     logger.ILogger
}

// NewRouter creates a new confidence router
func NewRouter(thresholds intent.Thresholds, pending PendingWriter, log logger.ILogger) *Router {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Router{
		thresholds: thresholds.Merge(),
		pending:    pending,
		logger:     log,
	}
}

// Decide applies the routing rules in order; the first that applies wins.
// A confidence equal to the mode threshold executes.
func (r *Router) Decide(ctx context.Context, in Input) Decision {
	p := in.Intent.Clone()
	threshold := r.thresholds.For(p.Mode)

	decision := r.decide(ctx, in, p, threshold)

	r.logger.Info("ROUTER", "Intent routed", map[string]interface{}{
		"session_id": in.SessionID,
		"mode":       decision.Intent.Mode,
		"action":     decision.Action,
		"reason":     decision.Reason,
		"confidence": p.Confidence,
		"threshold":  threshold,
		"instr":      truncateLog(p.OriginalInstruction, 50),
	})
	return decision
}

func (r *Router) decide(ctx context.Context, in Input, p intent.Payload, threshold float64) Decision {
	// merged answers may point at paragraphs the document no longer has
	selection := intent.InRange(in.Selection, len(in.Paragraphs))
	hadTargets := len(p.TargetParagraphs) > 0
	p.TargetParagraphs = intent.InRange(p.TargetParagraphs, len(in.Paragraphs))
	lostTargets := hadTargets && len(p.TargetParagraphs) == 0

	// 1. Answers to our own questions run as merged
	if p.FromClarification {
		p = withSelection(p, selection)
		if len(p.TargetParagraphs) == 0 && (lostTargets || p.Mode == intent.ModeTargetedUpdate) {
			return r.clarify(ctx, in, p, reasonTargetsGone)
		}
		return Decision{Action: ActionExecute, Intent: p, Reason: "from_clarification"}
	}

	// 2. Read-only answers never need gating
	if p.Mode == intent.ModeInformational {
		return Decision{Action: ActionExecute, Intent: p, Reason: "informational"}
	}

	// 3. Too unsure to act or ask
	if p.Confidence < intent.GlobalFloor {
		return Decision{Action: ActionFallback, Intent: p.AsInformational(), Reason: "below_global_floor"}
	}

	// 4. Unsure for this mode: ask
	if p.Confidence < threshold {
		return r.clarify(ctx, in, withSelection(p, selection), "below_mode_threshold")
	}

	// 5. Broad rewrites are previewed first
	if p.Mode == intent.ModeFullRewrite && !p.Confirmed && isBroad(p, len(in.Paragraphs)) {
		m := locale.For(p.Language)
		return Decision{
			Action:   ActionConfirm,
			Intent:   p,
			Question: m.ConfirmRewrite,
			Options:  ConfirmationOptions(p.Language),
			Missing:  session.MissingConfirmation,
			Reason:   "broad_rewrite",
		}
	}

	// 6. Targeted edit with nothing to target
	if p.Mode == intent.ModeTargetedUpdate && len(p.TargetParagraphs) == 0 {
		if len(selection) == 0 {
			return r.clarify(ctx, in, p, "missing_targets")
		}
		return Decision{Action: ActionExecute, Intent: withSelection(p, selection), Reason: "selection_targets"}
	}

	return Decision{Action: ActionExecute, Intent: p, Reason: "confident"}
}

// clarify builds the question for the most useful missing field and persists it
func (r *Router) clarify(ctx context.Context, in Input, p intent.Payload, reason string) Decision {
	m := locale.For(p.Language)
	d := Decision{Action: ActionClarify, Intent: p, Reason: reason}

	switch {
	case (p.Mode == intent.ModeTargetedUpdate || reason == reasonTargetsGone) && len(p.TargetParagraphs) == 0 && len(in.Paragraphs) > 0:
		d.Missing = session.MissingTargetParagraph
		d.Question = m.ClarifyTarget
		d.Options = paragraphOptions(m, in.Paragraphs, in.Mentioned)
	case p.ModificationOr("") == intent.ModToneChange && p.Tone == nil:
		d.Missing = session.MissingTone
		d.Question = m.ClarifyTone
		d.Options = catalogOptions(m.Tones, "formal", "informal", "neutral")
	case p.Mode.Mutates():
		d.Missing = session.MissingModification
		d.Question = m.ClarifyModification
		d.Options = catalogOptions(m.Modifications, string(intent.ModCorrection), string(intent.ModImprovement), string(intent.ModToneChange))
	default:
		d.Missing = session.MissingMode
		d.Question = m.ClarifyMode
		modes := make([]string, len(intent.AllModes))
		for i, mode := range intent.AllModes {
			modes[i] = string(mode)
		}
		d.Options = catalogOptions(m.Modes, modes...)
	}

	if r.pending == nil || in.SessionID == "" {
		r.logger.Warn("ROUTER", "Clarification not persisted: no session", map[string]interface{}{
			"missing": d.Missing,
		})
		return d
	}
	if _, err := r.pending.SetPendingIntent(ctx, in.SessionID, p, d.Missing, d.Options); err != nil {
		r.logger.Error("ROUTER", "Failed to persist pending clarification", map[string]interface{}{
			"session_id": in.SessionID,
			"error":      err.Error(),
		})
	}
	return d
}

// ConfirmationOptions returns the localized apply / cancel pair
func ConfirmationOptions(language string) []session.Option {
	m := locale.For(language)
	return []session.Option{
		{Label: m.ConfirmApply, Value: "yes"},
		{Label: m.ConfirmCancel, Value: "no"},
	}
}

func isBroad(p intent.Payload, paragraphCount int) bool {
	if p.Scope == intent.ScopeDocument || len(p.TargetParagraphs) == 0 || p.Risk == intent.RiskHigh {
		return true
	}
	if paragraphCount == 0 {
		return false
	}
	return float64(len(p.TargetParagraphs))/float64(paragraphCount) > BroadRewriteRatio
}

// withSelection fills an untargeted targeted_update from the editor selection.
// selection must already be bounded to the document.
func withSelection(p intent.Payload, selection []int) intent.Payload {
	if p.Mode != intent.ModeTargetedUpdate || len(p.TargetParagraphs) > 0 || len(selection) == 0 {
		return p
	}
	out := p.Clone()
	out.TargetParagraphs = append([]int(nil), selection...)
	out.Scope = intent.ScopeSelection
	return out
}

// paragraphOptions picks recently mentioned paragraphs first, then fills in document order.
// Options are listed in document order.
func paragraphOptions(m locale.Messages, paragraphs []intent.Paragraph, mentioned []int) []session.Option {
	byID := make(map[int]intent.Paragraph, len(paragraphs))
	for _, p := range paragraphs {
		byID[p.ID] = p
	}

	ordered := make([]int, 0, len(paragraphs))
	seen := make(map[int]bool)
	for i := len(mentioned) - 1; i >= 0; i-- {
		id := mentioned[i]
		if _, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	for _, p := range paragraphs {
		if !seen[p.ID] {
			seen[p.ID] = true
			ordered = append(ordered, p.ID)
		}
	}

	if len(ordered) > MaxParagraphOptions {
		ordered = ordered[:MaxParagraphOptions]
	}
	slices.Sort(ordered)
	options := make([]session.Option, len(ordered))
	for i, id := range ordered {
		options[i] = session.Option{Label: m.ParagraphLabel(id, byID[id].Text), Value: strconv.Itoa(id)}
	}
	return options
}

func catalogOptions(labels map[string]string, values ...string) []session.Option {
	options := make([]session.Option, 0, len(values))
	for _, v := range values {
		label, ok := labels[v]
		if !ok {
			label = v
		}
		options = append(options, session.Option{Label: label, Value: v})
	}
	return options
}

// truncateLog truncates string for logging
func truncateLog(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
