package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanReply(t *testing.T) {
	out, err := CleanReply("<think>plan\nmore</think>  answer ")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	_, err = CleanReply("<think>only thoughts</think>")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestPostJSON_TruncatesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	var out map[string]any
	err := PostJSON(context.Background(), srv.Client(), "test", srv.URL, nil, map[string]string{"a": "b"}, &out)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.True(t, statusErr.Overloaded())
	assert.Len(t, statusErr.Body, maxErrorBody+3)
}

type recorded struct {
	module, message string
	details         map[string]interface{}
}

type memLogger struct {
	mu      sync.Mutex
	entries []recorded
}

func (m *memLogger) add(module, message string, details map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, recorded{module, message, details})
}

func (m *memLogger) Debug(module, message string, details map[string]interface{}) {
	m.add(module, message, details)
}
func (m *memLogger) Info(module, message string, details map[string]interface{}) {
	m.add(module, message, details)
}
func (m *memLogger) Warn(module, message string, details map[string]interface{}) {
	m.add(module, message, details)
}
func (m *memLogger) Error(module, message string, details map[string]interface{}) {
	m.add(module, message, details)
}
func (m *memLogger) Sync() error { return nil }

type stubProvider struct {
	reply string
	err   error
}

func (s stubProvider) Chat(context.Context, []Message, ...Option) (string, error) {
	return s.reply, s.err
}

func (s stubProvider) Generate(context.Context, string, ...Option) (string, error) {
	return s.reply, s.err
}

func TestTrafficLogger(t *testing.T) {
	log := &memLogger{}
	p := NewTrafficLogger(stubProvider{reply: "ok"}, log)

	out, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, WithModel("small"), WithJSONMode())
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.Len(t, log.entries, 1)
	e := log.entries[0]
	assert.Equal(t, "LLM", e.module)
	assert.Equal(t, "small", e.details["model"])
	assert.Equal(t, true, e.details["json"])
	assert.Equal(t, "ok", e.details["reply"])

	boom := errors.New("down")
	_, err = NewTrafficLogger(stubProvider{err: boom}, log).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	require.Len(t, log.entries, 2)
	assert.Equal(t, "Model call failed", log.entries[1].message)
	assert.Equal(t, "down", log.entries[1].details["error"])
}
