package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/internal/repository/contract"
	"ai-editor-be/pkg/ai/intent"
)

const keyPrefix = "session:"

// Config controls session lifetimes
type Config struct {
	IdleTTL    time.Duration // a session untouched for this long is evicted
	PendingTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		IdleTTL:    time.Hour,
		PendingTTL: PendingTTL,
	}
}

// ResetHook runs after a session is reset or evicted
type ResetHook func(ctx context.Context, sessionID string)

// Manager handles session persistence on a KVStore
type Manager struct {
	store  contract.KVStore
	config Config
	logger logger.ILogger
	now    func() time.Time

	mu    sync.Mutex
	hooks []ResetHook
}

// NewManager creates a new session manager
func NewManager(store contract.KVStore, config Config, log logger.ILogger) *Manager {
	defaults := DefaultConfig()
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = defaults.PendingTTL
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		store:  store,
		config: config,
		logger: log,
		now:    time.Now,
	}
}

// WithClock replaces the time source; intended for tests
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// OnReset registers a hook fired on Reset and on idle eviction
func (m *Manager) OnReset(hook ResetHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// LoadOrCreate retrieves a session or returns a fresh one; a fresh session is not saved until mutated
func (m *Manager) LoadOrCreate(ctx context.Context, sessionID string) (*State, error) {
	state, _, err := contract.GetJSON[State](ctx, m.store, key(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if state == nil {
		now := m.now()
		state = &State{
			ID:        sessionID,
			History:   []Turn{},
			Mentioned: []int{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return state, nil
}

// Save persists session state and refreshes its idle expiry
func (m *Manager) Save(ctx context.Context, state *State) error {
	state.UpdatedAt = m.now()
	if err := contract.SetJSON(ctx, m.store, key(state.ID), state, m.config.IdleTTL); err != nil {
		return fmt.Errorf("save session %s: %w", state.ID, err)
	}
	return nil
}

// AddTurn appends to the history, keeping the last MaxTurns
func (m *Manager) AddTurn(ctx context.Context, sessionID string, role Role, content string, mode intent.Mode) error {
	return m.update(ctx, sessionID, func(s *State) {
		s.addTurn(Turn{Role: role, Content: content, Mode: mode, At: m.now()})
	})
}

// RememberParagraphs records paragraph ids the conversation referred to
func (m *Manager) RememberParagraphs(ctx context.Context, sessionID string, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	return m.update(ctx, sessionID, func(s *State) {
		s.rememberParagraphs(ids)
	})
}

// SetPendingIntent stores a clarification request, replacing any previous pending intent
func (m *Manager) SetPendingIntent(ctx context.Context, sessionID string, original intent.Payload, missing MissingParam, options []Option) (*PendingIntent, error) {
	pending := m.newPending(StateWaitingClarification, original, missing)
	pending.Options = append([]Option(nil), options...)

	err := m.update(ctx, sessionID, func(s *State) { s.Pending = pending })
	if err != nil {
		return nil, err
	}
	m.logger.Debug("SESSION", "Clarification pending", map[string]interface{}{
		"session_id": sessionID,
		"missing":    missing,
		"options":    len(options),
	})
	return pending, nil
}

// SetPendingConfirmation stores a confirmation request with its preview
func (m *Manager) SetPendingConfirmation(ctx context.Context, sessionID string, original intent.Payload, preview intent.Proposal, options []Option) (*PendingIntent, error) {
	pending := m.newPending(StateWaitingConfirmation, original, MissingConfirmation)
	pending.Options = append([]Option(nil), options...)
	pending.Preview = &intent.Proposal{
		Result:       preview.Result.Clone(),
		DocumentHash: preview.DocumentHash,
	}

	err := m.update(ctx, sessionID, func(s *State) { s.Pending = pending })
	if err != nil {
		return nil, err
	}
	m.logger.Debug("SESSION", "Confirmation pending", map[string]interface{}{
		"session_id": sessionID,
		"mode":       original.Mode,
	})
	return pending, nil
}

// Pending returns the live pending intent of state, or nil.
// An expired record is cleared and ErrPendingExpired is returned.
func (m *Manager) Pending(ctx context.Context, state *State) (*PendingIntent, error) {
	if state.Pending == nil {
		return nil, nil
	}
	if !state.Pending.Expired(m.now()) {
		return state.Pending, nil
	}

	state.Pending = nil
	if err := m.Save(ctx, state); err != nil {
		return nil, err
	}
	m.logger.Debug("SESSION", "Pending intent expired", map[string]interface{}{
		"session_id": state.ID,
	})
	return nil, ErrPendingExpired
}

// ClearPending drops the pending intent
func (m *Manager) ClearPending(ctx context.Context, sessionID string) error {
	return m.update(ctx, sessionID, func(s *State) { s.Pending = nil })
}

// Reset removes the session and runs reset hooks
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, key(sessionID)); err != nil {
		return fmt.Errorf("reset session %s: %w", sessionID, err)
	}
	m.runHooks(ctx, sessionID)
	m.logger.Info("SESSION", "Session reset", map[string]interface{}{
		"session_id": sessionID,
	})
	return nil
}

// HandleEviction is the KVStore eviction callback; non-session keys are ignored
func (m *Manager) HandleEviction(storeKey string) {
	sessionID, ok := strings.CutPrefix(storeKey, keyPrefix)
	if !ok {
		return
	}
	m.runHooks(context.Background(), sessionID)
}

func (m *Manager) runHooks(ctx context.Context, sessionID string) {
	m.mu.Lock()
	hooks := append([]ResetHook(nil), m.hooks...)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx, sessionID)
	}
}

// update applies a read-modify-write; concurrent writers for one session are last-write-wins
func (m *Manager) update(ctx context.Context, sessionID string, mutate func(*State)) error {
	state, err := m.LoadOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}
	mutate(state)
	return m.Save(ctx, state)
}

func (m *Manager) newPending(state PendingState, original intent.Payload, missing MissingParam) *PendingIntent {
	now := m.now()
	return &PendingIntent{
		State:     state,
		Original:  original.Clone(),
		Missing:   missing,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.PendingTTL),
	}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}
