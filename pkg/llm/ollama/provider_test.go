package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-editor-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Message: llm.Message{Role: "assistant", Content: content}, Done: true})
	}
}

func TestChat_SendsOptionsAndReadsReply(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(`{"mode":"informational"}`)(w, r)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Chat(context.Background(),
		[]llm.Message{{Role: "system", Content: "classify"}, {Role: "model", Content: "ok"}},
		llm.WithTemperature(0), llm.WithMaxTokens(256), llm.WithJSONMode(), llm.WithModel("qwen2"))

	require.NoError(t, err)
	assert.Equal(t, `{"mode":"informational"}`, out)
	assert.Equal(t, "qwen2", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, 0.0, got.Options.Temperature)
	assert.Equal(t, 256, got.Options.NumPredict)
}

func TestChat_DefaultsToConfiguredModel(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply("hi")(w, r)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3").Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, DefaultTemperature, got.Options.Temperature)
	assert.Empty(t, got.Format)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, llm.RoleUser, got.Messages[0].Role)
}

func TestChat_StripsThinkBlock(t *testing.T) {
	srv := httptest.NewServer(reply("<think>\nthe user wants json\n</think>\n{\"mode\":\"locate_highlight\"}"))
	defer srv.Close()

	out, err := NewOllamaProvider(srv.URL, "qwen3").Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, `{"mode":"locate_highlight"}`, out)
}

func TestChat_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(reply("  "))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "m").Generate(context.Background(), "x")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	var statusErr *llm.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "ollama", statusErr.Provider)
	assert.Equal(t, "model not found", statusErr.Body)
	assert.False(t, statusErr.Overloaded())
}
