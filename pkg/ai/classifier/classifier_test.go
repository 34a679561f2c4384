package classifier

import (
	"context"
	"errors"
	"testing"

	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/ai/session"
	"ai-editor-be/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func input() pipeline.ClassifyInput {
	return pipeline.ClassifyInput{
		Instruction: "fix the typos here",
		Language:    "en",
		Selection:   []int{1},
		References:  []int{2},
		History:     []session.Turn{{Role: session.RoleUser, Content: "hello"}},
		Document: pipeline.DocumentContext{
			Paragraphs: []intent.Paragraph{{ID: 0, Text: "First."}, {ID: 1, Text: "Secnd."}, {ID: 2, Text: "Third."}},
			Total:      3,
		},
	}
}

func TestClassify_ParsesFencedJSON(t *testing.T) {
	fake := &llmtest.Provider{Reply: "```json\n{\"mode\":\"targeted_update\",\"confidence\":\"0.9\",\"target_paragraphs\":[1]}\n```"}
	c := New(fake, Config{Model: "qwen2"}, nil)

	raw, err := c.Classify(context.Background(), input())
	require.NoError(t, err)
	require.NotNil(t, raw.Mode)
	assert.Equal(t, "targeted_update", *raw.Mode)
	assert.Equal(t, "0.9", raw.Confidence)
	assert.Equal(t, []any{float64(1)}, raw.TargetParagraphs)

	call := fake.Last()
	assert.True(t, call.Options.JSONMode)
	assert.Equal(t, 0.0, call.Options.Temperature)
	assert.Equal(t, 400, call.Options.MaxTokens)
	assert.Equal(t, "qwen2", call.Options.Model)
}

func TestClassify_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	c := New(&llmtest.Provider{Err: boom}, Config{}, nil)

	raw, err := c.Classify(context.Background(), input())
	assert.Nil(t, raw)
	assert.ErrorIs(t, err, boom)
}

func TestClassify_GarbageBecomesEmptyPayload(t *testing.T) {
	c := New(&llmtest.Provider{Reply: "I think the user wants edits"}, Config{}, nil)

	raw, err := c.Classify(context.Background(), input())
	require.NoError(t, err)
	assert.Nil(t, raw.Mode)
}

func TestClassify_DirectiveFillsMissingMode(t *testing.T) {
	c := New(&llmtest.Provider{Reply: `{"confidence":0.7}`}, Config{}, nil)
	in := input()
	in.ModeHint = intent.ModeLocate

	raw, err := c.Classify(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, raw.Mode)
	assert.Equal(t, "locate_highlight", *raw.Mode)
}

func TestBuildPrompt(t *testing.T) {
	in := input()
	in.ModeHint = intent.ModeTargetedUpdate
	p := BuildPrompt(in)

	assert.Contains(t, p, "<document>\n[0] First.\n[1] Secnd.\n[2] Third.\n</document>")
	assert.Contains(t, p, "<selected_paragraphs>\n1\n</selected_paragraphs>")
	assert.Contains(t, p, "<referenced_paragraphs>\n2\n</referenced_paragraphs>")
	assert.Contains(t, p, "<conversation_history>\nuser: hello\n</conversation_history>")
	assert.Contains(t, p, `mode "targeted_update"`)
	assert.Contains(t, p, "<user_instruction>\nfix the typos here\n</user_instruction>")
	assert.NotContains(t, p, "recently_discussed_paragraphs")
}
