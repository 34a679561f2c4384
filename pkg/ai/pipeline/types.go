package pipeline

import (
	"context"

	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/session"
	"ai-editor-be/pkg/ai/validator"
)

// Action is the envelope-level outcome of a request
type Action string

const (
	ActionExecute   Action = "execute"
	ActionClarify   Action = "clarify"
	ActionConfirm   Action = "confirm"
	ActionFallback  Action = "fallback"
	ActionFastPath  Action = "fast_path"
	ActionCancelled Action = "cancelled"
	ActionDegraded  Action = "degraded"
)

// Request is one instruction against a document snapshot
type Request struct {
	SessionID   string
	Instruction string
	Paragraphs  []intent.Paragraph
	Selection   []int  // paragraph ids under the editor selection
	Language    string // optional client hint
}

// Result is the uniform envelope returned for every request
type Result struct {
	RequestID            string             `json:"request_id"`
	Mode                 intent.Mode        `json:"mode"`
	Action               Action             `json:"action"`
	Language             string             `json:"language"`
	Reply                string             `json:"reply,omitempty"`
	Options              []session.Option   `json:"options,omitempty"`
	Highlights           []intent.Highlight `json:"highlights,omitempty"`
	Edits                []intent.Edit      `json:"edits,omitempty"`
	RequiresConfirmation bool               `json:"requires_confirmation"`
	Metadata             Metadata           `json:"metadata"`
}

// Metadata is diagnostic data; it is never shown to the end user as-is
type Metadata struct {
	Timings            map[string]int64     `json:"timings_ms"`
	CacheHit           bool                 `json:"cache_hit"`
	CacheLayer         string               `json:"cache_layer,omitempty"`
	BreakerState       string               `json:"breaker_state"`
	SafeMode           bool                 `json:"safe_mode"`
	TimedOut           bool                 `json:"timed_out"`
	FastPath           string               `json:"fast_path,omitempty"`
	Confidence         float64              `json:"confidence,omitempty"`
	RouteReason        string               `json:"route_reason,omitempty"`
	ValidationErrors   []string             `json:"validation_errors,omitempty"`
	ValidationWarnings []string             `json:"validation_warnings,omitempty"`
	Rejected           []validator.Rejected `json:"rejected,omitempty"`
	Warnings           []string             `json:"warnings,omitempty"`
	Error              string               `json:"error,omitempty"`
}

// Sanitized is the cleaned instruction
type Sanitized struct {
	Instruction string      // trimmed, control characters removed
	Normalized  string      // lowercased, whitespace-collapsed; used for hashing and matching
	Language    string      // detected or hinted, one of the supported codes
	References  []int       // paragraph ids referenced in the text
	ModeHint    intent.Mode // explicit directive such as "/edit", empty otherwise
}

// DocumentContext is the windowed view sent to the model
type DocumentContext struct {
	Paragraphs []intent.Paragraph // window, ids preserved
	Total      int                // paragraphs in the full document
	Hash       string             // hash of the full document
	Truncated  bool
}

// ClassifyInput is what the classifier sees
type ClassifyInput struct {
	Instruction string
	Language    string
	ModeHint    intent.Mode
	References  []int
	Selection   []int
	Mentioned   []int
	History     []session.Turn
	Document    DocumentContext
}

// ExecuteInput is what an executor sees
type ExecuteInput struct {
	Intent      intent.Payload
	Instruction string
	History     []session.Turn
	Document    DocumentContext
}

// Sanitizer cleans raw user input; paragraphCount bounds resolved references
type Sanitizer interface {
	Sanitize(instruction, languageHint string, paragraphCount int) Sanitized
}

// DocumentContextBuilder windows the document around the paragraphs in focus
type DocumentContextBuilder interface {
	Build(paragraphs []intent.Paragraph, focus []int) DocumentContext
}

// Classifier turns an instruction into a loosely typed intent
type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (*intent.RawPayload, error)
}

// ExecutorRegistry runs the executor for the intent's mode
type ExecutorRegistry interface {
	Execute(ctx context.Context, in ExecuteInput) (intent.ModeResult, error)
}
