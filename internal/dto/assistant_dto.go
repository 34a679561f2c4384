package dto

import (
	"encoding/json"
	"time"

	"ai-editor-be/pkg/ai/breaker"
	"ai-editor-be/pkg/ai/cache"
	"ai-editor-be/pkg/ai/pipeline"
)

type ParagraphDTO struct {
	Id   int    `json:"id" validate:"min=0"`
	Text string `json:"text" validate:"max=20000"`
}

// ProcessInstructionRequest carries the document either as a paragraph list
// or as editor content (Lexical JSON object, or a string of Lexical JSON / plain text)
type ProcessInstructionRequest struct {
	SessionId   string          `json:"session_id" validate:"required,max=128"`
	Instruction string          `json:"instruction" validate:"required,max=8000"`
	Paragraphs  []ParagraphDTO  `json:"paragraphs,omitempty" validate:"max=2000,dive"`
	Content     json.RawMessage `json:"content,omitempty"`
	Selection   []int           `json:"selection,omitempty" validate:"max=500,dive,min=0"`
	Language    string          `json:"language,omitempty" validate:"omitempty,max=8"`
}

type ProcessInstructionResponse struct {
	SessionId string `json:"session_id"`
	*pipeline.Result
}

type EventCountersDTO struct {
	Processed          int64            `json:"processed"`
	ByAction           map[string]int64 `json:"by_action"`
	CircuitChanges     int64            `json:"circuit_changes"`
	LastCircuitState   string           `json:"last_circuit_state,omitempty"`
	LastEventAt        *time.Time       `json:"last_event_at,omitempty"`
	MalformedDiscarded int64            `json:"malformed_discarded"`
}

type AssistantStatusResponse struct {
	Breaker      breaker.Snapshot `json:"breaker"`
	Cache        cache.Stats      `json:"cache"`
	Events       EventCountersDTO `json:"events"`
	StoreBackend string           `json:"store_backend"`
}
