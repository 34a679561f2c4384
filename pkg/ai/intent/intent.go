package intent

import (
	"strings"
)

// Mode represents what kind of action an instruction requires
type Mode string

const (
	ModeInformational  Mode = "informational"    // Answer or explain, no document mutation
	ModeLocate         Mode = "locate_highlight" // Find and highlight spans
	ModeTargetedUpdate Mode = "targeted_update"  // Edit specific paragraphs
	ModeFullRewrite    Mode = "full_rewrite"     // Rewrite broad parts of the document
)

// AllModes lists modes in ascending order of risk
var AllModes = []Mode{ModeInformational, ModeLocate, ModeTargetedUpdate, ModeFullRewrite}

func (m Mode) IsValid() bool {
	switch m {
	case ModeInformational, ModeLocate, ModeTargetedUpdate, ModeFullRewrite:
		return true
	}
	return false
}

// Mutates reports whether the mode changes document text
func (m Mode) Mutates() bool {
	return m == ModeTargetedUpdate || m == ModeFullRewrite
}

func (m Mode) String() string {
	return string(m)
}

// modeSynonyms maps loose labels emitted by models to a known mode
var modeSynonyms = map[string]Mode{
	"informational":    ModeInformational,
	"info":             ModeInformational,
	"question":         ModeInformational,
	"answer":           ModeInformational,
	"chat":             ModeInformational,
	"explain":          ModeInformational,
	"locate_highlight": ModeLocate,
	"locate":           ModeLocate,
	"highlight":        ModeLocate,
	"find":             ModeLocate,
	"search":           ModeLocate,
	"targeted_update":  ModeTargetedUpdate,
	"targeted":         ModeTargetedUpdate,
	"update":           ModeTargetedUpdate,
	"edit":             ModeTargetedUpdate,
	"modify":           ModeTargetedUpdate,
	"full_rewrite":     ModeFullRewrite,
	"rewrite":          ModeFullRewrite,
	"full":             ModeFullRewrite,
}

// ParseMode resolves a raw label into a Mode.
// exact is false when the label only matched through a synonym.
func ParseMode(label string) (mode Mode, exact bool, ok bool) {
	cleaned := strings.ToLower(strings.TrimSpace(label))
	cleaned = strings.NewReplacer("-", "_", " ", "_").Replace(cleaned)
	if Mode(cleaned).IsValid() {
		return Mode(cleaned), cleaned == label, true
	}
	if m, found := modeSynonyms[cleaned]; found {
		return m, false, true
	}
	return "", false, false
}

// ModificationKind describes how an editing mode changes text
type ModificationKind string

const (
	ModCorrection   ModificationKind = "correction"
	ModImprovement  ModificationKind = "improvement"
	ModToneChange   ModificationKind = "tone_change"
	ModExpansion    ModificationKind = "expansion"
	ModCondensation ModificationKind = "condensation"
	ModRestructure  ModificationKind = "restructure"
)

// DefaultEditingKind is the conservative kind assumed when an editing intent omits one
const DefaultEditingKind = ModCorrection

func (k ModificationKind) IsValid() bool {
	switch k {
	case ModCorrection, ModImprovement, ModToneChange, ModExpansion, ModCondensation, ModRestructure:
		return true
	}
	return false
}

// RiskLevel is the classifier's estimate of how destructive an action is
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Scope is the breadth of the document an intent touches
type Scope string

const (
	ScopeSelection  Scope = "selection"
	ScopeParagraphs Scope = "paragraphs"
	ScopeDocument   Scope = "document"
)

func (s Scope) IsValid() bool {
	return s == ScopeSelection || s == ScopeParagraphs || s == ScopeDocument
}

// Payload is the structured, mode-tagged interpretation of an instruction.
// Values are treated as immutable: helpers return modified copies.
type Payload struct {
	Mode                Mode              `json:"mode"`
	SecondaryMode       *Mode             `json:"secondary_mode,omitempty"`
	Confidence          float64           `json:"confidence"`
	TargetParagraphs    []int             `json:"target_paragraphs"`
	ContextParagraphs   []int             `json:"context_paragraphs,omitempty"`
	Modification        *ModificationKind `json:"modification,omitempty"`
	Risk                RiskLevel         `json:"risk_level"`
	Scope               Scope             `json:"scope"`
	Tone                *string           `json:"tone,omitempty"`
	Language            string            `json:"language"`
	Reasoning           string            `json:"reasoning,omitempty"`
	OriginalInstruction string            `json:"original_instruction,omitempty"`
	Confirmed           bool              `json:"confirmed,omitempty"`
	FromClarification   bool              `json:"from_clarification,omitempty"`
}

// Clone returns a deep copy
func (p Payload) Clone() Payload {
	out := p
	out.TargetParagraphs = cloneInts(p.TargetParagraphs)
	out.ContextParagraphs = cloneInts(p.ContextParagraphs)
	if p.SecondaryMode != nil {
		m := *p.SecondaryMode
		out.SecondaryMode = &m
	}
	if p.Modification != nil {
		k := *p.Modification
		out.Modification = &k
	}
	if p.Tone != nil {
		t := *p.Tone
		out.Tone = &t
	}
	return out
}

// WithInstruction attaches the user's instruction and language
func (p Payload) WithInstruction(instruction, language string) Payload {
	out := p.Clone()
	out.OriginalInstruction = instruction
	if language != "" {
		out.Language = language
	}
	return out
}

// AsInformational degrades the intent to a read-only answer
func (p Payload) AsInformational() Payload {
	out := p.Clone()
	out.Mode = ModeInformational
	out.SecondaryMode = nil
	out.TargetParagraphs = []int{}
	out.Modification = nil
	out.Risk = RiskLow
	return out
}

// ModificationOr returns the modification kind or a fallback
func (p Payload) ModificationOr(fallback ModificationKind) ModificationKind {
	if p.Modification == nil {
		return fallback
	}
	return *p.Modification
}

// Raw converts a typed payload back into the loose classifier shape.
// Confirmed and FromClarification are dropped.
func (p Payload) Raw() RawPayload {
	mode := string(p.Mode)
	conf := any(p.Confidence)
	risk := string(p.Risk)
	scope := string(p.Scope)
	raw := RawPayload{
		Mode:                &mode,
		Confidence:          conf,
		TargetParagraphs:    intsToAny(p.TargetParagraphs),
		ContextParagraphs:   intsToAny(p.ContextParagraphs),
		Risk:                &risk,
		Scope:               &scope,
		Tone:                p.Tone,
		Language:            p.Language,
		Reasoning:           p.Reasoning,
		OriginalInstruction: p.OriginalInstruction,
	}
	if p.SecondaryMode != nil {
		s := string(*p.SecondaryMode)
		raw.SecondaryMode = &s
	}
	if p.Modification != nil {
		k := string(*p.Modification)
		raw.Modification = &k
	}
	return raw
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

// InRange keeps the paragraph ids that exist in a document of n paragraphs, in order.
// The result is never nil.
func InRange(ids []int, n int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < n {
			out = append(out, id)
		}
	}
	return out
}

func intsToAny(in []int) []any {
	if in == nil {
		return nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// ModePtr is a convenience for optional fields
func ModePtr(m Mode) *Mode { return &m }

// KindPtr is a convenience for optional fields
func KindPtr(k ModificationKind) *ModificationKind { return &k }

// StringPtr is a convenience for optional fields
func StringPtr(s string) *string { return &s }
