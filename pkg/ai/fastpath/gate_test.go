package fastpath

import (
	"os"
	"path/filepath"
	"testing"

	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/locale"
	"ai-editor-be/pkg/ai/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	gate, err := NewGate(DefaultPatterns(), nil)
	require.NoError(t, err)
	return gate
}

func sampleParagraphs() []intent.Paragraph {
	return []intent.Paragraph{
		{ID: 0, Text: "The quick brown fox."},
		{ID: 1, Text: "Jumps over the lazy dog."},
	}
}

func TestGate_CannedResponses(t *testing.T) {
	gate := newTestGate(t)

	tests := []struct {
		instruction string
		language    string
		wantKind    Kind
		wantLang    string
	}{
		{"hola", "es", KindGreeting, "es"},
		{"Buenos días!", "es", KindGreeting, "es"},
		{"hello", "en", KindGreeting, "en"},
		{"what can you do?", "en", KindHelp, "en"},
		{"muchas gracias", "es", KindThanks, "es"},
		{"terima kasih", "id", KindThanks, "id"},
		{"bye", "en", KindFarewell, "en"},
		// detected language is wrong; another table still answers
		{"hola", "en", KindGreeting, "es"},
	}

	for _, tt := range tests {
		t.Run(tt.instruction, func(t *testing.T) {
			out := gate.Evaluate(Input{Instruction: tt.instruction, Language: tt.language, Paragraphs: sampleParagraphs()})
			require.True(t, out.Matched)
			assert.True(t, out.Terminal())
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantLang, out.Language)
			assert.NotEmpty(t, out.Response)
		})
	}
}

func TestGate_EmptyDocumentBeforeGreeting(t *testing.T) {
	gate := newTestGate(t)

	out := gate.Evaluate(Input{Instruction: "hola", Language: "es", Paragraphs: []intent.Paragraph{{ID: 0, Text: "   "}}})

	require.True(t, out.Matched)
	assert.Equal(t, KindEmptyDocument, out.Kind)
	assert.Equal(t, locale.For("es").EmptyDocument, out.Response)
}

func TestGate_TyposSynthesizesLocateIntent(t *testing.T) {
	gate := newTestGate(t)

	out := gate.Evaluate(Input{Instruction: "¿Hay errores de ortografía?", Language: "es", Paragraphs: sampleParagraphs()})

	require.True(t, out.Matched)
	assert.False(t, out.Terminal())
	assert.Equal(t, KindErrorsTypos, out.Kind)
	require.NotNil(t, out.Intent)
	assert.Equal(t, intent.ModeLocate, out.Intent.Mode)
	assert.Equal(t, []int{0, 1}, out.Intent.TargetParagraphs)
	assert.Equal(t, intent.ScopeDocument, out.Intent.Scope)
	assert.Equal(t, TyposConfidence, out.Intent.Confidence)
	assert.Equal(t, "es", out.Intent.Language)
}

func TestGate_FixRequestGoesToClassifier(t *testing.T) {
	gate := newTestGate(t)

	out := gate.Evaluate(Input{Instruction: "fix the typos in paragraph 2", Language: "en", Paragraphs: sampleParagraphs()})

	assert.False(t, out.Matched)
}

func TestGate_NoMatch(t *testing.T) {
	gate := newTestGate(t)

	out := gate.Evaluate(Input{Instruction: "make the second paragraph more formal", Language: "en", Paragraphs: sampleParagraphs()})

	assert.False(t, out.Matched)
	assert.False(t, out.ClearPending)
}

func TestGate_PendingResolutionHasPriority(t *testing.T) {
	gate := newTestGate(t)
	pending := &session.PendingIntent{
		State:    session.StateWaitingClarification,
		Original: intent.Payload{Mode: intent.ModeTargetedUpdate, Confidence: 0.6, Language: "es"},
		Missing:  session.MissingTone,
		Options:  []session.Option{{Label: "formal", Value: "formal"}, {Label: "informal", Value: "informal"}},
	}

	// "1" resolves the pending intent even on an empty document
	out := gate.Evaluate(Input{Instruction: "1", Language: "es", Pending: pending})

	require.True(t, out.Matched)
	assert.Equal(t, KindPendingResolution, out.Kind)
	require.NotNil(t, out.Intent)
	assert.True(t, out.Intent.FromClarification)
	assert.Equal(t, "formal", *out.Intent.Tone)
	assert.True(t, out.ClearPending)
}

func TestGate_PendingCancelled(t *testing.T) {
	gate := newTestGate(t)
	pending := &session.PendingIntent{
		State:    session.StateWaitingConfirmation,
		Original: intent.Payload{Mode: intent.ModeFullRewrite, Language: "en"},
		Missing:  session.MissingConfirmation,
	}

	out := gate.Evaluate(Input{Instruction: "no", Language: "en", Pending: pending, Paragraphs: sampleParagraphs()})

	require.True(t, out.Matched)
	assert.True(t, out.Cancelled)
	assert.True(t, out.Terminal())
	assert.Equal(t, locale.For("en").Cancelled, out.Response)
}

func TestGate_UnmatchedReplyClearsPendingAndFallsThrough(t *testing.T) {
	gate := newTestGate(t)
	pending := &session.PendingIntent{
		State:    session.StateWaitingClarification,
		Original: intent.Payload{Mode: intent.ModeTargetedUpdate, Language: "en"},
		Missing:  session.MissingTone,
		Options:  []session.Option{{Label: "formal", Value: "formal"}},
	}

	out := gate.Evaluate(Input{Instruction: "thanks", Language: "en", Pending: pending, Paragraphs: sampleParagraphs()})

	require.True(t, out.Matched)
	assert.Equal(t, KindThanks, out.Kind)
	assert.True(t, out.ClearPending)
}

func TestLoadPatterns_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := "languages:\n  en:\n    greeting:\n      - \"^yo[!.]*$\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	patterns, err := LoadPatterns(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"^yo[!.]*$"}, patterns.Languages["en"].Greeting)
	assert.NotEmpty(t, patterns.Languages["en"].Thanks)

	gate, err := NewGate(patterns, nil)
	require.NoError(t, err)
	out := gate.Evaluate(Input{Instruction: "yo!", Language: "en", Paragraphs: sampleParagraphs()})
	assert.Equal(t, KindGreeting, out.Kind)
}

func TestNewGate_RejectsBadPattern(t *testing.T) {
	patterns := PatternFile{Languages: map[string]LanguagePatterns{"en": {Greeting: []string{"("}}}}

	_, err := NewGate(patterns, nil)
	assert.Error(t, err)
}
