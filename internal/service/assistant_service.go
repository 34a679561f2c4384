package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-editor-be/internal/dto"
	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/breaker"
	"ai-editor-be/pkg/ai/cache"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/ai/session"
	"ai-editor-be/pkg/lexical"
)

// ErrInvalidDocument is returned when the request carries an unreadable document
var ErrInvalidDocument = errors.New("invalid document")

// InstructionProcessor is the assistant pipeline seen from the HTTP layer
type InstructionProcessor interface {
	ProcessInstruction(ctx context.Context, req pipeline.Request) *pipeline.Result
}

type IAssistantService interface {
	ProcessInstruction(ctx context.Context, userId string, req *dto.ProcessInstructionRequest) (*dto.ProcessInstructionResponse, error)
	ResetSession(ctx context.Context, userId string, sessionId string) error
	CancelPending(ctx context.Context, userId string, sessionId string) (bool, error)
	Status(ctx context.Context) *dto.AssistantStatusResponse
}

type assistantService struct {
	processor    InstructionProcessor
	sessions     *session.Manager
	breaker      *breaker.CircuitBreaker
	cache        *cache.TwoTierCache
	consumer     IConsumerService
	storeBackend string
	logger       logger.ILogger
}

func NewAssistantService(
	processor InstructionProcessor,
	sessions *session.Manager,
	cb *breaker.CircuitBreaker,
	tiers *cache.TwoTierCache,
	consumer IConsumerService,
	storeBackend string,
	log logger.ILogger,
) IAssistantService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &assistantService{
		processor:    processor,
		sessions:     sessions,
		breaker:      cb,
		cache:        tiers,
		consumer:     consumer,
		storeBackend: storeBackend,
		logger:       log,
	}
}

// scopedSessionID keeps sessions of different users apart
func scopedSessionID(userId, sessionId string) string {
	return userId + ":" + sessionId
}

func (s *assistantService) ProcessInstruction(ctx context.Context, userId string, req *dto.ProcessInstructionRequest) (*dto.ProcessInstructionResponse, error) {
	paragraphs, err := documentParagraphs(req)
	if err != nil {
		return nil, err
	}

	result := s.processor.ProcessInstruction(ctx, pipeline.Request{
		SessionID:   scopedSessionID(userId, req.SessionId),
		Instruction: req.Instruction,
		Paragraphs:  paragraphs,
		Selection:   req.Selection,
		Language:    req.Language,
	})

	return &dto.ProcessInstructionResponse{SessionId: req.SessionId, Result: result}, nil
}

// documentParagraphs prefers the explicit paragraph list over editor content.
// A paragraph id is its position, so explicit lists must be numbered 0..n-1 in order.
func documentParagraphs(req *dto.ProcessInstructionRequest) ([]intent.Paragraph, error) {
	if len(req.Paragraphs) > 0 {
		paragraphs := make([]intent.Paragraph, len(req.Paragraphs))
		for i, p := range req.Paragraphs {
			if p.Id != i {
				return nil, fmt.Errorf("%w: paragraph at position %d has id %d", ErrInvalidDocument, i, p.Id)
			}
			paragraphs[i] = intent.Paragraph{ID: p.Id, Text: p.Text}
		}
		return paragraphs, nil
	}

	content := bytes.TrimSpace(req.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil, nil
	}

	switch content[0] {
	case '{':
		paragraphs, err := lexical.NewParser().Parse(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return paragraphs, nil
	case '"':
		var text string
		if err := json.Unmarshal(content, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return lexical.ParseContent(text), nil
	default:
		return nil, fmt.Errorf("%w: content must be a lexical object or a string", ErrInvalidDocument)
	}
}

func (s *assistantService) ResetSession(ctx context.Context, userId string, sessionId string) error {
	return s.sessions.Reset(ctx, scopedSessionID(userId, sessionId))
}

// CancelPending reports whether a pending clarification or confirmation was dropped
func (s *assistantService) CancelPending(ctx context.Context, userId string, sessionId string) (bool, error) {
	id := scopedSessionID(userId, sessionId)
	state, err := s.sessions.LoadOrCreate(ctx, id)
	if err != nil {
		return false, err
	}
	if state.Pending == nil {
		return false, nil
	}
	if err := s.sessions.ClearPending(ctx, id); err != nil {
		return false, err
	}
	s.logger.Info("ASSISTANT", "Pending intent cancelled", map[string]interface{}{"session_id": id})
	return true, nil
}

func (s *assistantService) Status(ctx context.Context) *dto.AssistantStatusResponse {
	res := &dto.AssistantStatusResponse{
		Breaker:      s.breaker.Snapshot(),
		Cache:        s.cache.Stats(),
		StoreBackend: s.storeBackend,
	}
	if s.consumer != nil {
		res.Events = s.consumer.Counters()
	}
	return res
}
