// Package session keeps per-conversation history and the pending clarification or confirmation.
package session

import (
	"errors"
	"time"

	"ai-editor-be/pkg/ai/intent"
)

const (
	MaxTurns     = 5
	MaxMentioned = 10
	PendingTTL   = 5 * time.Minute
)

// ErrPendingExpired is returned when a pending intent outlived its TTL; it has been cleared
var ErrPendingExpired = errors.New("pending intent expired")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the rolling history
type Turn struct {
	Role    Role        `json:"role"`
	Content string      `json:"content"`
	Mode    intent.Mode `json:"mode,omitempty"`
	At      time.Time   `json:"at"`
}

type PendingState string

const (
	StateWaitingClarification PendingState = "waiting_clarification"
	StateWaitingConfirmation  PendingState = "waiting_confirmation"
)

// MissingParam names the field a clarification answer fills in
type MissingParam string

const (
	MissingTone            MissingParam = "tone"
	MissingTargetParagraph MissingParam = "target_paragraph"
	MissingModification    MissingParam = "modification"
	MissingMode            MissingParam = "mode"
	MissingConfirmation    MissingParam = "confirmation"
)

// Option is one offered answer. Value is merged into the intent; Label is shown to the user.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PendingIntent is an unresolved clarification or confirmation
type PendingIntent struct {
	State     PendingState     `json:"state"`
	Original  intent.Payload   `json:"original"`
	Missing   MissingParam     `json:"missing"`
	Options   []Option         `json:"options,omitempty"`
	Preview   *intent.Proposal `json:"preview,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether now is past the expiry
func (p *PendingIntent) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Labels returns the option labels in offer order
func (p *PendingIntent) Labels() []string {
	labels := make([]string, len(p.Options))
	for i, o := range p.Options {
		labels[i] = o.Label
	}
	return labels
}

// State is the persisted conversation record
type State struct {
	ID        string         `json:"id"`
	History   []Turn         `json:"history"`
	Mentioned []int          `json:"mentioned"`
	Pending   *PendingIntent `json:"pending,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LastTurns returns up to n most recent turns, oldest first
func (s *State) LastTurns(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	return s.History[len(s.History)-n:]
}

func (s *State) addTurn(turn Turn) {
	s.History = append(s.History, turn)
	if len(s.History) > MaxTurns {
		s.History = append([]Turn(nil), s.History[len(s.History)-MaxTurns:]...)
	}
}

// rememberParagraphs moves ids to the most-recent end, keeping MaxMentioned
func (s *State) rememberParagraphs(ids []int) {
	for _, id := range ids {
		kept := s.Mentioned[:0]
		for _, m := range s.Mentioned {
			if m != id {
				kept = append(kept, m)
			}
		}
		s.Mentioned = append(kept, id)
	}
	if len(s.Mentioned) > MaxMentioned {
		s.Mentioned = append([]int(nil), s.Mentioned[len(s.Mentioned)-MaxMentioned:]...)
	}
}
