package validator

import (
	"testing"

	"ai-editor-be/pkg/ai/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outputParagraphs() []intent.Paragraph {
	return []intent.Paragraph{
		{ID: 0, Text: "Teh cat sat on teh mat."},
		{ID: 1, Text: "It was a sunny day."},
	}
}

func editingPayload(mode intent.Mode, targets ...int) intent.Payload {
	return intent.Payload{Mode: mode, TargetParagraphs: targets, Modification: intent.KindPtr(intent.ModCorrection)}
}

func TestValidateOutput_RejectsFabricatedText(t *testing.T) {
	v := newTestValidator()
	result := intent.ModeResult{Mode: intent.ModeTargetedUpdate, Edits: []intent.Edit{
		{ParagraphID: 0, Original: "The dog", Replacement: "The cat"},
		{ParagraphID: 0, Original: "Teh cat", Replacement: "The cat"},
	}}

	out := v.ValidateOutput(result, editingPayload(intent.ModeTargetedUpdate, 0), outputParagraphs())

	require.Len(t, out.Result.Edits, 1)
	assert.Equal(t, "Teh cat", out.Result.Edits[0].Original)
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, RejectNotFound, out.Rejected[0].Code)
}

func TestValidateOutput_RejectsNoOp(t *testing.T) {
	v := newTestValidator()
	result := intent.ModeResult{Edits: []intent.Edit{
		{ParagraphID: 1, Original: "sunny  day", Replacement: "sunny day"},
	}}
	paragraphs := []intent.Paragraph{{ID: 1, Text: "It was a sunny  day."}}

	out := v.ValidateOutput(result, editingPayload(intent.ModeFullRewrite), paragraphs)

	assert.Empty(t, out.Result.Edits)
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, RejectNoOp, out.Rejected[0].Code)
}

func TestValidateOutput_CaseChangeIsNotNoOp(t *testing.T) {
	v := newTestValidator()
	result := intent.ModeResult{Edits: []intent.Edit{{ParagraphID: 1, Original: "sunny", Replacement: "Sunny"}}}

	out := v.ValidateOutput(result, editingPayload(intent.ModeFullRewrite), outputParagraphs())

	assert.Len(t, out.Result.Edits, 1)
}

func TestValidateOutput_ClaimsNonOverlappingOccurrences(t *testing.T) {
	v := newTestValidator()
	result := intent.ModeResult{Edits: []intent.Edit{
		{ParagraphID: 0, Original: "teh", Replacement: "the"},
		{ParagraphID: 0, Original: "teh", Replacement: "the"},
		{ParagraphID: 0, Original: "teh", Replacement: "the"},
	}}

	out := v.ValidateOutput(result, editingPayload(intent.ModeTargetedUpdate, 0), outputParagraphs())

	require.Len(t, out.Result.Edits, 1)
	assert.Equal(t, 15, out.Result.Edits[0].Start)
	assert.Equal(t, 18, out.Result.Edits[0].End)
	require.Len(t, out.Rejected, 2)
	assert.Equal(t, RejectOverlap, out.Rejected[0].Code)
}

func TestValidateOutput_SecondOccurrenceIsClaimed(t *testing.T) {
	v := newTestValidator()
	paragraphs := []intent.Paragraph{{ID: 0, Text: "teh one and teh other"}}
	result := intent.ModeResult{Edits: []intent.Edit{
		{ParagraphID: 0, Original: "teh", Replacement: "the"},
		{ParagraphID: 0, Original: "teh other", Replacement: "the other"},
		{ParagraphID: 0, Original: "teh", Replacement: "the"},
	}}

	out := v.ValidateOutput(result, editingPayload(intent.ModeFullRewrite), paragraphs)

	require.Len(t, out.Result.Edits, 2)
	assert.Equal(t, 0, out.Result.Edits[0].Start)
	assert.Equal(t, 12, out.Result.Edits[1].Start)
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, RejectOverlap, out.Rejected[0].Code)
}

func TestValidateOutput_TargetedEditsStayInTargets(t *testing.T) {
	v := newTestValidator()
	result := intent.ModeResult{Edits: []intent.Edit{
		{ParagraphID: 1, Original: "sunny", Replacement: "cloudy"},
		{ParagraphID: 4, Original: "x", Replacement: "y"},
	}}

	out := v.ValidateOutput(result, editingPayload(intent.ModeTargetedUpdate, 0), outputParagraphs())

	assert.Empty(t, out.Result.Edits)
	require.Len(t, out.Rejected, 2)
	assert.Equal(t, RejectParagraphMissing, out.Rejected[1].Code)
	assert.Equal(t, RejectOutsideTargets, out.Rejected[0].Code)
}

func TestValidateOutput_MaxEdits(t *testing.T) {
	v := New(intent.DefaultThresholds(), 1, nil)
	result := intent.ModeResult{Edits: []intent.Edit{
		{ParagraphID: 0, Original: "Teh", Replacement: "The"},
		{ParagraphID: 1, Original: "sunny", Replacement: "bright"},
	}}

	out := v.ValidateOutput(result, editingPayload(intent.ModeFullRewrite), outputParagraphs())

	assert.Len(t, out.Result.Edits, 1)
	assert.Equal(t, RejectTooMany, out.Rejected[0].Code)
}

func TestValidateOutput_Highlights(t *testing.T) {
	v := newTestValidator()
	result := intent.ModeResult{Mode: intent.ModeLocate, Highlights: []intent.Highlight{
		{ParagraphID: 0, Text: "teh"},
		{ParagraphID: 0, Text: "ghost"},
		{ParagraphID: 1},
	}, Edits: []intent.Edit{{ParagraphID: 0, Original: "Teh", Replacement: "The"}}}

	out := v.ValidateOutput(result, intent.Payload{Mode: intent.ModeLocate}, outputParagraphs())

	require.Len(t, out.Result.Highlights, 2)
	assert.Equal(t, 15, out.Result.Highlights[0].Start)
	assert.Equal(t, 0, out.Result.Highlights[1].Start)
	assert.Equal(t, len("It was a sunny day."), out.Result.Highlights[1].End)
	assert.Empty(t, out.Result.Edits)
	assert.Len(t, out.Rejected, 2)
}

func TestValidateOutput_InformationalDropsMutations(t *testing.T) {
	v := newTestValidator()
	result := intent.ModeResult{Mode: intent.ModeTargetedUpdate, Reply: "Here you go", Edits: []intent.Edit{{ParagraphID: 0, Original: "Teh", Replacement: "The"}}}

	out := v.ValidateOutput(result, intent.Payload{Mode: intent.ModeInformational}, outputParagraphs())

	assert.Equal(t, "Here you go", out.Result.Reply)
	assert.Equal(t, intent.ModeInformational, out.Result.Mode)
	assert.Empty(t, out.Result.Edits)
	assert.True(t, hasCode(out.Warnings, "mode_mismatch"))
}
