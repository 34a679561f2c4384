package sanitize

import (
	"fmt"
	"strings"
	"testing"

	"ai-editor-be/pkg/ai/intent"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	s := New(nil)

	tests := []struct {
		name        string
		instruction string
		hint        string
		paragraphs  int
		wantText    string
		wantNorm    string
		wantLang    string
		wantRefs    []int
		wantHint    intent.Mode
	}{
		{
			name:        "explicit reference",
			instruction: "  Fix @p:2 please ",
			paragraphs:  3,
			wantText:    "Fix @p:2 please",
			wantNorm:    "fix @p:2 please",
			wantLang:    "en",
			wantRefs:    []int{1},
		},
		{
			name:        "directive and natural reference",
			instruction: "/edit: corrige el párrafo 2",
			paragraphs:  4,
			wantText:    "corrige el párrafo 2",
			wantNorm:    "corrige el párrafo 2",
			wantLang:    "es",
			wantRefs:    []int{1},
			wantHint:    intent.ModeTargetedUpdate,
		},
		{
			name:        "control characters removed",
			instruction: "Hola\u200b\n¿qué   tal?\x00",
			wantText:    "Hola ¿qué   tal?",
			wantNorm:    "hola ¿qué tal?",
			wantLang:    "es",
		},
		{
			name:        "hint wins over detection",
			instruction: "make it shorter",
			hint:        "es-MX",
			wantText:    "make it shorter",
			wantNorm:    "make it shorter",
			wantLang:    "es",
		},
		{
			name:        "unsupported hint ignored",
			instruction: "tolong perbaiki paragraf ini",
			hint:        "fr",
			wantText:    "tolong perbaiki paragraf ini",
			wantNorm:    "tolong perbaiki paragraf ini",
			wantLang:    "id",
		},
		{
			name:        "out of range reference dropped",
			instruction: "fix @p:9",
			paragraphs:  2,
			wantText:    "fix @p:9",
			wantNorm:    "fix @p:9",
			wantLang:    "en",
		},
		{
			name:        "bare directive keeps words",
			instruction: "/ask",
			wantText:    "/ask",
			wantNorm:    "/ask",
			wantLang:    "en",
			wantHint:    intent.ModeInformational,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.instruction, tt.hint, tt.paragraphs)
			assert.Equal(t, tt.wantText, got.Instruction)
			assert.Equal(t, tt.wantNorm, got.Normalized)
			assert.Equal(t, tt.wantLang, got.Language)
			assert.Equal(t, tt.wantHint, got.ModeHint)
			if len(tt.wantRefs) == 0 {
				assert.Empty(t, got.References)
			} else {
				assert.Equal(t, tt.wantRefs, got.References)
			}
		})
	}
}

func TestSanitize_ReferenceLimit(t *testing.T) {
	var parts []string
	for i := 1; i <= 12; i++ {
		parts = append(parts, fmt.Sprintf("@p:%d", i))
	}
	got := New(nil).Sanitize("fix "+strings.Join(parts, " "), "", 20)
	assert.Len(t, got.References, 10)
	assert.Equal(t, 0, got.References[0])
}

func TestSanitize_Truncates(t *testing.T) {
	got := New(nil).Sanitize(strings.Repeat("a", MaxInstructionRunes+50), "en", 0)
	assert.Len(t, []rune(got.Instruction), MaxInstructionRunes)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage(""))
	assert.Equal(t, "en", DetectLanguage("xyz qwerty"))
	assert.Equal(t, "en", DetectLanguage("what is this paragraph about"))
	assert.Equal(t, "es", DetectLanguage("cambia el tono del texto"))
	assert.Equal(t, "id", DetectLanguage("apa isi paragraf ini"))
	assert.Equal(t, "es", DetectLanguage("¿algo?"))
}
