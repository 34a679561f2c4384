package intent

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultLanguage is assumed when neither the classifier nor the sanitizer supplied one
const DefaultLanguage = "en"

// RawPayload is the loosely typed classifier output.
// Every field is optional so "missing" can be told apart from "zero".
// It carries no confirmation or clarification flags: those are set only by session resolution.
type RawPayload struct {
	Mode                *string `json:"mode,omitempty"`
	SecondaryMode       *string `json:"secondary_mode,omitempty"`
	Confidence          any     `json:"confidence,omitempty"`
	TargetParagraphs    []any   `json:"target_paragraphs,omitempty"`
	ContextParagraphs   []any   `json:"context_paragraphs,omitempty"`
	Modification        *string `json:"modification,omitempty"`
	Risk                *string `json:"risk_level,omitempty"`
	Scope               *string `json:"scope,omitempty"`
	Tone                *string `json:"tone,omitempty"`
	Language            string  `json:"language,omitempty"`
	Reasoning           string  `json:"reasoning,omitempty"`
	OriginalInstruction string  `json:"original_instruction,omitempty"`
}

// ParseRaw decodes classifier JSON, tolerating markdown fences and surrounding prose
func ParseRaw(response string) (*RawPayload, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}

	var raw RawPayload
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// CoerceFloat converts a loosely typed number.
// numeric is false when the value had to be parsed from a string.
func CoerceFloat(v any) (value float64, numeric bool, ok bool) {
	switch n := v.(type) {
	case float64:
		return n, true, !math.IsNaN(n)
	case float32:
		return float64(n), true, true
	case int:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case json.Number:
		f, err := n.Float64()
		return f, true, err == nil
	case string:
		s := strings.TrimSpace(n)
		percent := strings.HasSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false, false
		}
		if percent {
			f = f / 100
		}
		return f, false, true
	}
	return 0, false, false
}

// CoerceInt converts a loosely typed paragraph id. Fractional values are rejected.
func CoerceInt(v any) (int, bool) {
	f, _, ok := CoerceFloat(v)
	if !ok || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Clamp01 bounds a confidence value
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Repair fills every optional field of a raw payload with a conservative default.
// It is a pure transform; the second return value names the fields that were defaulted.
func Repair(raw RawPayload, language string) (Payload, []string) {
	var defaulted []string
	out := Payload{
		Reasoning:           raw.Reasoning,
		OriginalInstruction: raw.OriginalInstruction,
		Tone:                raw.Tone,
	}

	// Mode
	out.Mode = ModeInformational
	if raw.Mode != nil {
		if m, _, ok := ParseMode(*raw.Mode); ok {
			out.Mode = m
		} else {
			defaulted = append(defaulted, "mode")
		}
	} else {
		defaulted = append(defaulted, "mode")
	}

	if raw.SecondaryMode != nil {
		if m, _, ok := ParseMode(*raw.SecondaryMode); ok {
			out.SecondaryMode = &m
		}
	}

	// Confidence
	if f, _, ok := CoerceFloat(raw.Confidence); ok {
		out.Confidence = Clamp01(f)
	} else {
		defaulted = append(defaulted, "confidence")
	}

	out.TargetParagraphs = coerceIDs(raw.TargetParagraphs)
	out.ContextParagraphs = coerceIDs(raw.ContextParagraphs)
	if len(out.ContextParagraphs) == 0 {
		out.ContextParagraphs = nil
	}

	// Modification
	if raw.Modification != nil {
		k := ModificationKind(strings.ToLower(strings.TrimSpace(*raw.Modification)))
		if k.IsValid() {
			out.Modification = &k
		}
	}
	if out.Modification == nil && out.Mode.Mutates() {
		out.Modification = KindPtr(DefaultEditingKind)
		defaulted = append(defaulted, "modification")
	}

	// Risk
	if raw.Risk != nil && RiskLevel(strings.ToLower(*raw.Risk)).IsValid() {
		out.Risk = RiskLevel(strings.ToLower(*raw.Risk))
	} else {
		out.Risk = RiskMedium
		if !out.Mode.Mutates() {
			out.Risk = RiskLow
		}
		defaulted = append(defaulted, "risk_level")
	}

	// Scope
	if raw.Scope != nil && Scope(strings.ToLower(*raw.Scope)).IsValid() {
		out.Scope = Scope(strings.ToLower(*raw.Scope))
	} else {
		out.Scope = ScopeDocument
		if len(out.TargetParagraphs) > 0 {
			out.Scope = ScopeParagraphs
		}
		defaulted = append(defaulted, "scope")
	}

	// Language
	out.Language = strings.ToLower(strings.TrimSpace(raw.Language))
	if out.Language == "" {
		out.Language = language
		if out.Language == "" {
			out.Language = DefaultLanguage
		}
		defaulted = append(defaulted, "language")
	}

	return out, defaulted
}

// coerceIDs keeps integer ids in order, dropping duplicates and non-integers
func coerceIDs(values []any) []int {
	ids := make([]int, 0, len(values))
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		id, ok := CoerceInt(v)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
