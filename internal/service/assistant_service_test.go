package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-editor-be/internal/dto"
	"ai-editor-be/internal/repository/memory"
	"ai-editor-be/pkg/ai/breaker"
	"ai-editor-be/pkg/ai/cache"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/ai/session"
	"ai-editor-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	last pipeline.Request
}

func (p *recordingProcessor) ProcessInstruction(_ context.Context, req pipeline.Request) *pipeline.Result {
	p.last = req
	return &pipeline.Result{RequestID: "r1", Action: pipeline.ActionExecute}
}

type fixture struct {
	svc       IAssistantService
	processor *recordingProcessor
	sessions  *session.Manager
	pubSub    *gochannel.GoChannel
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewKVStore(time.Hour, time.Minute)
	sessions := session.NewManager(store, session.DefaultConfig(), nil)
	tiers := cache.NewTwoTierCache(store, cache.DefaultConfig(), nil)
	cb := breaker.New("llm", breaker.DefaultConfig(), nil)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	consumer := NewConsumerService(pubSub, events.DefaultTopic, nil)
	require.NoError(t, consumer.Consume(context.Background()))

	processor := &recordingProcessor{}
	return fixture{
		svc:       NewAssistantService(processor, sessions, cb, tiers, consumer, "memory", nil),
		processor: processor,
		sessions:  sessions,
		pubSub:    pubSub,
	}
}

func TestProcessInstruction_ScopesSessionAndForwardsParagraphs(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ProcessInstruction(context.Background(), "user-1", &dto.ProcessInstructionRequest{
		SessionId:   "s1",
		Instruction: "fix typos",
		Paragraphs:  []dto.ParagraphDTO{{Id: 0, Text: "Helo."}, {Id: 1, Text: "Wrld."}},
		Selection:   []int{1},
		Language:    "en",
	})
	require.NoError(t, err)

	assert.Equal(t, "s1", res.SessionId)
	assert.Equal(t, pipeline.ActionExecute, res.Action)
	assert.Equal(t, "user-1:s1", f.processor.last.SessionID)
	assert.Equal(t, []intent.Paragraph{{ID: 0, Text: "Helo."}, {ID: 1, Text: "Wrld."}}, f.processor.last.Paragraphs)
	assert.Equal(t, []int{1}, f.processor.last.Selection)
}

func TestProcessInstruction_DocumentContent(t *testing.T) {
	lexicalDoc := `{"root":{"type":"root","children":[{"type":"paragraph","children":[{"type":"text","text":"Uno."}]},{"type":"paragraph","children":[{"type":"text","text":"Dos."}]}]}}`
	asString, _ := json.Marshal(lexicalDoc)

	tests := []struct {
		name    string
		content string
		want    []intent.Paragraph
	}{
		{"lexical object", lexicalDoc, []intent.Paragraph{{ID: 0, Text: "Uno."}, {ID: 1, Text: "Dos."}}},
		{"lexical string", string(asString), []intent.Paragraph{{ID: 0, Text: "Uno."}, {ID: 1, Text: "Dos."}}},
		{"plain string", `"Uno.\n\nDos."`, []intent.Paragraph{{ID: 0, Text: "Uno."}, {ID: 1, Text: "Dos."}}},
		{"absent", ``, nil},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.ProcessInstruction(context.Background(), "u", &dto.ProcessInstructionRequest{
				SessionId: "s", Instruction: "hola", Content: json.RawMessage(tt.content),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.processor.last.Paragraphs)
		})
	}
}

func TestProcessInstruction_InvalidDocument(t *testing.T) {
	f := newFixture(t)
	bad := []*dto.ProcessInstructionRequest{
		{SessionId: "s", Instruction: "x", Paragraphs: []dto.ParagraphDTO{{Id: 0}, {Id: 0}}},
		{SessionId: "s", Instruction: "x", Paragraphs: []dto.ParagraphDTO{{Id: 10}, {Id: 11}, {Id: 12}}},
		{SessionId: "s", Instruction: "x", Paragraphs: []dto.ParagraphDTO{{Id: 1}, {Id: 0}}},
		{SessionId: "s", Instruction: "x", Content: json.RawMessage(`42`)},
		{SessionId: "s", Instruction: "x", Content: json.RawMessage(`{"foo":1}`)},
	}
	for _, req := range bad {
		_, err := f.svc.ProcessInstruction(context.Background(), "u", req)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	}
}

func TestCancelPendingAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled, err := f.svc.CancelPending(ctx, "u", "s")
	require.NoError(t, err)
	assert.False(t, cancelled)

	_, err = f.sessions.SetPendingIntent(ctx, "u:s", intent.Payload{Mode: intent.ModeTargetedUpdate, Confidence: 0.9}, session.MissingTone, nil)
	require.NoError(t, err)

	cancelled, err = f.svc.CancelPending(ctx, "u", "s")
	require.NoError(t, err)
	assert.True(t, cancelled)

	state, err := f.sessions.LoadOrCreate(ctx, "u:s")
	require.NoError(t, err)
	assert.Nil(t, state.Pending)

	require.NoError(t, f.sessions.AddTurn(ctx, "u:s", session.RoleUser, "hola", ""))
	require.NoError(t, f.svc.ResetSession(ctx, "u", "s"))
	state, err = f.sessions.LoadOrCreate(ctx, "u:s")
	require.NoError(t, err)
	assert.Empty(t, state.History)
}

func TestStatus_CountsEvents(t *testing.T) {
	f := newFixture(t)
	bus := events.NewBus(f.pubSub, events.DefaultTopic)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, events.NewInstructionProcessed(map[string]interface{}{"action": "execute"})))
	require.NoError(t, bus.Publish(ctx, events.NewInstructionProcessed(map[string]interface{}{"action": "clarify"})))
	require.NoError(t, bus.Publish(ctx, events.NewCircuitStateChanged("llm", "closed", "open", "timeout")))

	assert.Eventually(t, func() bool {
		return f.svc.Status(ctx).Events.Processed == 2 && f.svc.Status(ctx).Events.CircuitChanges == 1
	}, time.Second, 10*time.Millisecond)

	status := f.svc.Status(ctx)
	assert.Equal(t, int64(1), status.Events.ByAction["execute"])
	assert.Equal(t, "open", status.Events.LastCircuitState)
	assert.Equal(t, breaker.StatusClosed, status.Breaker.Status)
	assert.Equal(t, "memory", status.StoreBackend)
}
