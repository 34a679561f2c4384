// Package validator checks classifier output before it is routed and executor output before it is returned.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/intent"
)

// Check identifies a validation stage
type Check string

const (
	CheckStructure  Check = "structure"
	CheckBounds     Check = "bounds"
	CheckConfidence Check = "confidence"
	CheckCoherence  Check = "coherence"
	CheckSafety     Check = "safety"
	CheckOutput     Check = "output"
)

// SuspiciousConfidence flags outputs that are implausibly certain
const SuspiciousConfidence = 0.99

// Issue is a single finding. Errors are hard; warnings were auto-corrected or are advisory.
type Issue struct {
	Check   Check  `json:"check"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s/%s: %s", i.Check, i.Code, i.Message)
}

// Context carries what the checks need from the request
type Context struct {
	ParagraphCount int
	Instruction    string
	Language       string
}

// Result is the outcome of Validate
type Result struct {
	Valid          bool
	Errors         []Issue
	Warnings       []Issue
	Payload        *intent.Payload
	Corrected      bool
	ShouldFallback bool
}

// Validator runs the ordered checks
type Validator struct {
	thresholds intent.Thresholds
	maxEdits   int
	logger     logger.ILogger
}

// DefaultMaxEdits bounds the edits one response may propose
const DefaultMaxEdits = 20

func New(thresholds intent.Thresholds, maxEdits int, log logger.ILogger) *Validator {
	if maxEdits <= 0 {
		maxEdits = DefaultMaxEdits
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Validator{
		thresholds: thresholds.Merge(),
		maxEdits:   maxEdits,
		logger:     log,
	}
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(the\s+|all\s+)?(system|previous|prior)`),
	regexp.MustCompile(`(?i)(reveal|print|show)\s+(the\s+|your\s+)?system\s+prompt`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\b`),
	regexp.MustCompile(`(?i)<\s*/?\s*(system|assistant|instructions?)\s*>`),
	regexp.MustCompile(`(?i)\bjailbreak\b`),
	regexp.MustCompile(`(?i)(olvida|ignora)\s+(las\s+|tus\s+)?instrucciones`),
	regexp.MustCompile(`(?i)abaikan\s+(semua\s+)?instruksi`),
}

var questionLead = regexp.MustCompile(`(?i)^(what|why|how|who|when|where|which|is|are|does|do|qu[eé]|c[oó]mo|por\s*qu[eé]|cu[aá]l|d[oó]nde|apa|apakah|bagaimana|kenapa|mengapa|siapa)\b`)

// run accumulates findings for one Validate call
type run struct {
	errors    []Issue
	warnings  []Issue
	corrected bool
}

func (r *run) fail(check Check, code, format string, args ...any) {
	r.errors = append(r.errors, Issue{Check: check, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *run) warn(check Check, code, format string, args ...any) {
	r.warnings = append(r.warnings, Issue{Check: check, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *run) correct(check Check, code, format string, args ...any) {
	r.warn(check, code, format, args...)
	r.corrected = true
}

// Validate runs structure, bounds, confidence, coherence and safety checks in order.
// The first stage that produces errors stops the run and requests the fallback.
func (v *Validator) Validate(raw intent.RawPayload, vc Context) Result {
	r := &run{}

	v.checkStructure(raw, r)
	if len(r.errors) > 0 {
		return v.finish(r, nil, vc)
	}

	payload, defaulted := intent.Repair(raw, vc.Language)
	for _, field := range defaulted {
		switch field {
		case "risk_level", "scope":
			r.correct(CheckStructure, "defaulted_"+field, "%s missing or invalid, defaulted to %v", field, fieldValue(payload, field))
		case "modification":
			r.correct(CheckCoherence, "default_modification", "editing mode without modification kind, assumed %s", intent.DefaultEditingKind)
		}
	}

	v.checkBounds(raw, &payload, vc, r)
	if len(r.errors) > 0 {
		return v.finish(r, nil, vc)
	}

	v.checkConfidence(raw, &payload, r)
	v.checkCoherence(&payload, r)

	v.checkSafety(&payload, vc, r)
	if len(r.errors) > 0 {
		return v.finish(r, nil, vc)
	}

	return v.finish(r, &payload, vc)
}

func (v *Validator) finish(r *run, payload *intent.Payload, vc Context) Result {
	res := Result{
		Valid:     len(r.errors) == 0,
		Errors:    r.errors,
		Warnings:  r.warnings,
		Corrected: r.corrected && payload != nil,
	}
	if res.Valid {
		res.Payload = payload
	} else {
		res.ShouldFallback = true
		v.logger.Warn("VALIDATOR", "Intent rejected", map[string]interface{}{
			"errors":      issueStrings(r.errors),
			"paragraphs":  vc.ParagraphCount,
			"instruction": truncate(vc.Instruction, 120),
		})
	}
	return res
}

// 1. structure
func (v *Validator) checkStructure(raw intent.RawPayload, r *run) {
	if raw.Mode == nil || strings.TrimSpace(*raw.Mode) == "" {
		r.fail(CheckStructure, "missing_mode", "mode is required")
	} else if mode, exact, ok := intent.ParseMode(*raw.Mode); !ok {
		r.fail(CheckStructure, "unknown_mode", "unknown mode %q", *raw.Mode)
	} else if !exact {
		r.correct(CheckStructure, "mode_synonym", "mode %q interpreted as %s", *raw.Mode, mode)
	}

	if raw.Confidence == nil {
		r.fail(CheckStructure, "missing_confidence", "confidence is required")
	} else if _, numeric, ok := intent.CoerceFloat(raw.Confidence); !ok {
		r.fail(CheckStructure, "confidence_not_numeric", "confidence %v is not a number", raw.Confidence)
	} else if !numeric {
		r.correct(CheckStructure, "confidence_coerced", "confidence %v parsed from text", raw.Confidence)
	}

	for _, id := range raw.TargetParagraphs {
		if _, ok := intent.CoerceInt(id); !ok {
			r.correct(CheckStructure, "invalid_paragraph_id", "target paragraph %v is not an integer id", id)
		}
	}

	if raw.Modification != nil {
		if k := intent.ModificationKind(strings.ToLower(*raw.Modification)); !k.IsValid() {
			r.warn(CheckStructure, "unknown_modification", "modification %q ignored", *raw.Modification)
		}
	}

	if raw.Mode != nil {
		if mode, _, ok := intent.ParseMode(*raw.Mode); ok && mode == intent.ModeTargetedUpdate && len(raw.TargetParagraphs) == 0 {
			r.warn(CheckStructure, "missing_targets", "targeted update without target paragraphs")
		}
	}
}

// 2. hallucination / bounds
func (v *Validator) checkBounds(raw intent.RawPayload, p *intent.Payload, vc Context, r *run) {
	inBounds := func(id int) bool { return id >= 0 && id < vc.ParagraphCount }

	valid := make([]int, 0, len(p.TargetParagraphs))
	var dropped []int
	for _, id := range p.TargetParagraphs {
		if inBounds(id) {
			valid = append(valid, id)
		} else {
			dropped = append(dropped, id)
		}
	}

	if len(raw.TargetParagraphs) > 0 && len(valid) == 0 {
		r.fail(CheckBounds, "targets_out_of_bounds", "no target paragraph exists in a document of %d paragraphs (got %v)", vc.ParagraphCount, raw.TargetParagraphs)
		return
	}
	if len(dropped) > 0 {
		r.correct(CheckBounds, "targets_stripped", "removed nonexistent paragraphs %v", dropped)
	}
	p.TargetParagraphs = valid

	if len(p.ContextParagraphs) > 0 {
		ctxValid := make([]int, 0, len(p.ContextParagraphs))
		for _, id := range p.ContextParagraphs {
			if inBounds(id) {
				ctxValid = append(ctxValid, id)
			}
		}
		if len(ctxValid) != len(p.ContextParagraphs) {
			r.correct(CheckBounds, "context_stripped", "removed nonexistent context paragraphs")
		}
		if len(ctxValid) == 0 {
			ctxValid = nil
		}
		p.ContextParagraphs = ctxValid
	}
}

// 3. confidence
func (v *Validator) checkConfidence(raw intent.RawPayload, p *intent.Payload, r *run) {
	if f, _, ok := intent.CoerceFloat(raw.Confidence); ok && (f < 0 || f > 1) {
		r.correct(CheckConfidence, "confidence_clamped", "confidence %v clamped to %.2f", f, p.Confidence)
	}

	threshold := v.thresholds.For(p.Mode)
	if p.Confidence < threshold {
		r.warn(CheckConfidence, "below_threshold", "confidence %.2f below %s threshold %.2f", p.Confidence, p.Mode, threshold)
	}
	if p.Confidence >= SuspiciousConfidence {
		r.warn(CheckConfidence, "suspicious_confidence", "confidence %.2f is suspiciously high", p.Confidence)
	}
}

// 4. cross-field coherence
func (v *Validator) checkCoherence(p *intent.Payload, r *run) {
	if p.Mode == intent.ModeInformational && len(p.TargetParagraphs) > 0 {
		r.correct(CheckCoherence, "informational_targets", "informational mode cannot target paragraphs; stripped %v", p.TargetParagraphs)
		p.TargetParagraphs = []int{}
	}

	if p.Mode.Mutates() && p.Modification == nil {
		p.Modification = intent.KindPtr(intent.DefaultEditingKind)
		r.correct(CheckCoherence, "default_modification", "editing mode without modification kind, assumed %s", intent.DefaultEditingKind)
	}

	if p.SecondaryMode != nil && *p.SecondaryMode == p.Mode {
		p.SecondaryMode = nil
		r.correct(CheckCoherence, "duplicate_secondary_mode", "secondary mode equals primary mode")
	}

	if p.Scope == intent.ScopeParagraphs && len(p.TargetParagraphs) == 0 {
		p.Scope = intent.ScopeDocument
		r.correct(CheckCoherence, "scope_without_targets", "paragraph scope without targets widened to document")
	}
}

// 5. safety
func (v *Validator) checkSafety(p *intent.Payload, vc Context, r *run) {
	if p.Mode.Mutates() && IsQuestion(vc.Instruction) {
		r.warn(CheckSafety, "question_with_mutation", "question-phrased instruction classified as %s", p.Mode)
	}

	for _, re := range injectionPatterns {
		if re.MatchString(p.Reasoning) {
			r.fail(CheckSafety, "prompt_injection", "reasoning matches injection pattern %q", re.String())
			return
		}
	}
}

// IsQuestion reports whether an instruction is phrased as a question
func IsQuestion(instruction string) bool {
	s := strings.TrimSpace(instruction)
	if s == "" {
		return false
	}
	if strings.HasSuffix(s, "?") || strings.HasPrefix(s, "¿") {
		return true
	}
	return questionLead.MatchString(s)
}

// Fallback builds the informational intent used when validation cannot produce a usable payload
func Fallback(instruction, language string) intent.Payload {
	if language == "" {
		language = intent.DefaultLanguage
	}
	return intent.Payload{
		Mode:                intent.ModeInformational,
		Confidence:          0,
		TargetParagraphs:    []int{},
		Risk:                intent.RiskLow,
		Scope:               intent.ScopeDocument,
		Language:            language,
		Reasoning:           "fallback after failed validation",
		OriginalInstruction: instruction,
	}
}

func fieldValue(p intent.Payload, field string) any {
	switch field {
	case "risk_level":
		return p.Risk
	case "scope":
		return p.Scope
	}
	return nil
}

func issueStrings(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.String()
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
