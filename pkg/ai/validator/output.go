package validator

import (
	"strings"

	"ai-editor-be/pkg/ai/intent"
)

// Rejection codes for executor output
const (
	RejectParagraphMissing = "paragraph_missing"
	RejectOutsideTargets   = "outside_targets"
	RejectEmptyFind        = "empty_find"
	RejectNotFound         = "not_found"
	RejectNoOp             = "no_op"
	RejectOverlap          = "overlap"
	RejectTooMany          = "too_many_edits"
	RejectWrongMode        = "wrong_mode"
)

// Rejected records an edit or highlight dropped by output validation
type Rejected struct {
	Kind        string `json:"kind"` // edit | highlight
	ParagraphID int    `json:"paragraph_id"`
	Code        string `json:"code"`
	Text        string `json:"text,omitempty"`
}

// OutputResult is the filtered executor output
type OutputResult struct {
	Result   intent.ModeResult
	Rejected []Rejected
	Warnings []Issue
}

// span is a claimed byte range [start, end)
type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// claims tracks accepted ranges per paragraph
type claims map[int][]span

// claim picks the first occurrence of needle in text that does not overlap a claimed range
func (c claims) claim(paragraphID int, text, needle string) (span, bool) {
	for offset := 0; offset <= len(text)-len(needle); {
		i := strings.Index(text[offset:], needle)
		if i < 0 {
			break
		}
		candidate := span{start: offset + i, end: offset + i + len(needle)}
		free := true
		for _, taken := range c[paragraphID] {
			if candidate.overlaps(taken) {
				free = false
				break
			}
		}
		if free {
			c[paragraphID] = append(c[paragraphID], candidate)
			return candidate, true
		}
		offset = candidate.start + 1
	}
	return span{}, false
}

// ValidateOutput enforces anti-hallucination rules on executor output.
// Edits must quote their paragraph verbatim, change something, and claim a free occurrence.
func (v *Validator) ValidateOutput(result intent.ModeResult, payload intent.Payload, paragraphs []intent.Paragraph) OutputResult {
	out := OutputResult{Result: intent.ModeResult{Mode: payload.Mode, Reply: result.Reply}}

	if result.Mode != "" && result.Mode != payload.Mode {
		out.Warnings = append(out.Warnings, Issue{Check: CheckOutput, Code: "mode_mismatch", Message: "executor answered as " + string(result.Mode)})
	}

	texts := make(map[int]string, len(paragraphs))
	for _, p := range paragraphs {
		texts[p.ID] = p.Text
	}

	switch payload.Mode {
	case intent.ModeInformational:
		out.rejectEdits(result.Edits, RejectWrongMode)
		out.rejectHighlights(result.Highlights, RejectWrongMode)

	case intent.ModeLocate:
		out.rejectEdits(result.Edits, RejectWrongMode)
		out.Result.Highlights = v.validateHighlights(result.Highlights, texts, &out)

	case intent.ModeTargetedUpdate, intent.ModeFullRewrite:
		out.rejectHighlights(result.Highlights, RejectWrongMode)
		out.Result.Edits = v.validateEdits(result.Edits, payload, texts, &out)
	}

	if len(out.Rejected) > 0 {
		v.logger.Info("VALIDATOR", "Executor output filtered", map[string]interface{}{
			"mode":     payload.Mode,
			"rejected": len(out.Rejected),
			"accepted": len(out.Result.Edits) + len(out.Result.Highlights),
		})
	}
	return out
}

func (v *Validator) validateEdits(edits []intent.Edit, payload intent.Payload, texts map[int]string, out *OutputResult) []intent.Edit {
	targets := make(map[int]bool, len(payload.TargetParagraphs))
	for _, id := range payload.TargetParagraphs {
		targets[id] = true
	}
	restrict := payload.Mode == intent.ModeTargetedUpdate && len(targets) > 0

	taken := claims{}
	accepted := make([]intent.Edit, 0, len(edits))
	for _, e := range edits {
		text, ok := texts[e.ParagraphID]
		switch {
		case !ok:
			out.rejectEdit(e, RejectParagraphMissing)
			continue
		case restrict && !targets[e.ParagraphID]:
			out.rejectEdit(e, RejectOutsideTargets)
			continue
		case e.Original == "":
			out.rejectEdit(e, RejectEmptyFind)
			continue
		case !strings.Contains(text, e.Original):
			out.rejectEdit(e, RejectNotFound)
			continue
		case collapseWhitespace(e.Original) == collapseWhitespace(e.Replacement):
			out.rejectEdit(e, RejectNoOp)
			continue
		case len(accepted) >= v.maxEdits:
			out.rejectEdit(e, RejectTooMany)
			continue
		}

		s, free := taken.claim(e.ParagraphID, text, e.Original)
		if !free {
			out.rejectEdit(e, RejectOverlap)
			continue
		}
		e.Start, e.End = s.start, s.end
		accepted = append(accepted, e)
	}
	return accepted
}

func (v *Validator) validateHighlights(highlights []intent.Highlight, texts map[int]string, out *OutputResult) []intent.Highlight {
	taken := claims{}
	accepted := make([]intent.Highlight, 0, len(highlights))
	for _, h := range highlights {
		text, ok := texts[h.ParagraphID]
		if !ok {
			out.rejectHighlight(h, RejectParagraphMissing)
			continue
		}
		if h.Text == "" {
			h.Start, h.End = 0, len(text)
			accepted = append(accepted, h)
			continue
		}
		if !strings.Contains(text, h.Text) {
			out.rejectHighlight(h, RejectNotFound)
			continue
		}
		s, free := taken.claim(h.ParagraphID, text, h.Text)
		if !free {
			out.rejectHighlight(h, RejectOverlap)
			continue
		}
		h.Start, h.End = s.start, s.end
		accepted = append(accepted, h)
	}
	return accepted
}

func (o *OutputResult) rejectEdit(e intent.Edit, code string) {
	o.Rejected = append(o.Rejected, Rejected{Kind: "edit", ParagraphID: e.ParagraphID, Code: code, Text: e.Original})
}

func (o *OutputResult) rejectHighlight(h intent.Highlight, code string) {
	o.Rejected = append(o.Rejected, Rejected{Kind: "highlight", ParagraphID: h.ParagraphID, Code: code, Text: h.Text})
}

func (o *OutputResult) rejectEdits(edits []intent.Edit, code string) {
	for _, e := range edits {
		o.rejectEdit(e, code)
	}
}

func (o *OutputResult) rejectHighlights(highlights []intent.Highlight, code string) {
	for _, h := range highlights {
		o.rejectHighlight(h, code)
	}
}

// collapseWhitespace trims and folds whitespace runs to one space; case is preserved
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
