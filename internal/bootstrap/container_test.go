package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-editor-be/internal/config"
	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/llm"
	"ai-editor-be/pkg/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.App.NatsURL = ""
	cfg.Store.Backend = "memory"
	cfg.Assistant.PatternsPath = ""
	cfg.Ai.TrafficLogPath = ""
	return cfg
}

func TestNewContainer_EndToEnd(t *testing.T) {
	// the classifier sends a single prompt, executors send system + user
	fake := &llmtest.Provider{Respond: func(_ context.Context, messages []llm.Message) (string, error) {
		if len(messages) == 1 {
			return `{"mode":"targeted_update","confidence":0.95,"target_paragraphs":[0],"modification":"correction"}`, nil
		}
		return `{"reply":"Fixed.","edits":[{"paragraph_id":0,"original":"Helo","replacement":"Hello"}]}`, nil
	}}

	c, err := NewContainer(testConfig(), WithLLMProvider(fake), WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.ConsumerService.Consume(context.Background()))

	res := c.Pipeline.ProcessInstruction(context.Background(), pipeline.Request{
		SessionID:   "u:s",
		Instruction: "correct the spelling of the first paragraph",
		Paragraphs:  []intent.Paragraph{{ID: 0, Text: "Helo world."}},
		Language:    "en",
	})

	assert.Equal(t, pipeline.ActionExecute, res.Action)
	require.Len(t, res.Edits, 1)
	assert.Equal(t, "Hello", res.Edits[0].Replacement)

	assert.Eventually(t, func() bool {
		return c.ConsumerService.Counters().Processed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNewContainer_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "etcd"
	_, err := NewContainer(cfg, WithLLMProvider(&llmtest.Provider{}), WithLogger(logger.NewNopLogger()))
	assert.ErrorContains(t, err, "unsupported store backend")

	cfg = testConfig()
	cfg.Ai.LLMProvider = "huggingface"
	cfg.Ai.APIKey = ""
	_, err = NewContainer(cfg, WithLogger(logger.NewNopLogger()))
	assert.ErrorContains(t, err, "API key")
}

func TestNewContainer_TrafficLog(t *testing.T) {
	cfg := testConfig()
	cfg.Ai.TrafficLogPath = filepath.Join(t.TempDir(), "llm.log")

	fake := &llmtest.Provider{Reply: "The text is short."}
	c, err := NewContainer(cfg, WithLLMProvider(fake), WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)

	c.Pipeline.ProcessInstruction(context.Background(), pipeline.Request{
		SessionID:   "u:traffic",
		Instruction: "what is this paragraph about?",
		Paragraphs:  []intent.Paragraph{{ID: 0, Text: "Some text."}},
		Language:    "en",
	})
	c.Close()

	raw, err := os.ReadFile(cfg.Ai.TrafficLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"module":"LLM"`)
	assert.NotEmpty(t, fake.Calls())
}
