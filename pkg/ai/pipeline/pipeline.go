// Package pipeline runs one instruction end to end and always returns a well-formed envelope.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/breaker"
	"ai-editor-be/pkg/ai/cache"
	"ai-editor-be/pkg/ai/fastpath"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/locale"
	"ai-editor-be/pkg/ai/router"
	"ai-editor-be/pkg/ai/session"
	"ai-editor-be/pkg/ai/validator"
	"ai-editor-be/pkg/events"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ai-editor-be/pipeline"

// Config holds the time budgets
type Config struct {
	ClassifierTimeout time.Duration
	ExecutorTimeout   time.Duration
	PipelineTimeout   time.Duration
	// LockWait is the single back-off before re-reading the cache when another request holds the lock
	LockWait time.Duration
	// PublishTimeout bounds event delivery after a request finishes
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ClassifierTimeout: 8 * time.Second,
		ExecutorTimeout:   20 * time.Second,
		PipelineTimeout:   30 * time.Second,
		LockWait:          500 * time.Millisecond,
		PublishTimeout:    2 * time.Second,
	}
}

// Deps are the collaborators of a pipeline. Publisher is optional.
type Deps struct {
	Sanitizer  Sanitizer
	Context    DocumentContextBuilder
	Classifier Classifier
	Executors  ExecutorRegistry
	Gate       *fastpath.Gate
	Cache      *cache.TwoTierCache
	Breaker    *breaker.CircuitBreaker
	Sessions   *session.Manager
	Validator  *validator.Validator
	Router     *router.Router
	Publisher  events.Publisher
}

// Pipeline orchestrates sanitize → session → context → fast path → cache/classify →
// validate → route → execute → persist
type Pipeline struct {
	deps   Deps
	config Config
	logger logger.ILogger
	tracer trace.Tracer
	now    func() time.Time
}

// New creates a pipeline
func New(deps Deps, config Config, log logger.ILogger) *Pipeline {
	if log == nil {
		log = logger.NewNopLogger()
	}
	defaults := DefaultConfig()
	if config.LockWait <= 0 {
		config.LockWait = defaults.LockWait
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}
	return &Pipeline{
		deps:   deps,
		config: config,
		logger: log,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for phase timings
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// run is the mutable state of one request
type run struct {
	req       Request
	result    *Result
	language  string
	clean     Sanitized
	state     *session.State
	doc       DocumentContext
	selection []int // request selection bounded to the document
	mentioned []int
	persist   bool
}

func (r *run) warn(msg string) {
	r.result.Metadata.Warnings = append(r.result.Metadata.Warnings, msg)
}

// respond sets a text-only outcome
func (r *run) respond(action Action, reply string) {
	r.result.Action = action
	r.result.Mode = intent.ModeInformational
	r.result.Reply = reply
}

// apply copies an executor result into the envelope
func (r *run) apply(p intent.Payload, out intent.ModeResult, action Action) {
	res := r.result
	res.Action = action
	res.Mode = p.Mode
	res.Reply = out.Reply
	res.Highlights = out.Highlights
	res.Edits = out.Edits

	m := locale.For(r.language)
	switch {
	case p.Mode.Mutates() && len(out.Edits) == 0 && (res.Reply == "" || len(res.Metadata.Rejected) > 0):
		// the model may claim changes that output validation dropped
		res.Reply = m.NoSafeEdits
	case action == ActionFallback && res.Reply == "":
		res.Reply = m.Fallback
	}

	r.mentioned = append(r.mentioned, p.TargetParagraphs...)
	for _, e := range out.Edits {
		r.mentioned = append(r.mentioned, e.ParagraphID)
	}
	for _, h := range out.Highlights {
		r.mentioned = append(r.mentioned, h.ParagraphID)
	}
}

// degrade replaces whatever was built with the localized apology
func (r *run) degrade(err error) {
	res := r.result
	res.Action = ActionDegraded
	res.Mode = intent.ModeInformational
	res.Reply = degradedMessage(err, r.language)
	res.Options = nil
	res.Highlights = nil
	res.Edits = nil
	res.RequiresConfirmation = false
	res.Metadata.Error = err.Error()
	if errors.Is(err, breaker.ErrCircuitOpen) {
		res.Metadata.SafeMode = true
	}
	if errors.Is(err, ErrClassificationTimeout) || errors.Is(err, ErrExecutionTimeout) || errors.Is(err, context.DeadlineExceeded) {
		res.Metadata.TimedOut = true
	}
	r.persist = false
}

// ProcessInstruction never panics and never returns nil
func (p *Pipeline) ProcessInstruction(ctx context.Context, req Request) (result *Result) {
	start := p.now()
	r := &run{
		req:      req,
		language: locale.Normalize(req.Language),
		result: &Result{
			RequestID: uuid.NewString(),
			Mode:      intent.ModeInformational,
			Action:    ActionDegraded,
			Metadata:  Metadata{Timings: make(map[string]int64)},
		},
	}

	ctx, span := p.tracer.Start(ctx, "assistant.ProcessInstruction", trace.WithAttributes(
		attribute.String("assistant.request_id", r.result.RequestID),
		attribute.String("assistant.session_id", req.SessionID),
		attribute.Int("assistant.paragraphs", len(req.Paragraphs)),
	))
	defer span.End()

	if p.config.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.PipelineTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: panic: %v", ErrUnknown, rec)
			p.logger.Error("PIPELINE", "Recovered from panic", map[string]interface{}{
				"request_id": r.result.RequestID,
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
			})
			span.RecordError(err)
			r.degrade(err)
		}
		p.finish(span, r, start)
		result = r.result
	}()

	if err := p.process(ctx, r); err != nil {
		p.logger.Warn("PIPELINE", "Serving degraded response", map[string]interface{}{
			"request_id": r.result.RequestID,
			"session_id": req.SessionID,
			"error":      err.Error(),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.degrade(err)
	}

	if r.persist {
		p.persistTurn(ctx, r)
	}
	return r.result
}

func (p *Pipeline) process(ctx context.Context, r *run) error {
	// 1. Sanitize
	_, end := p.startPhase(ctx, r, "sanitize")
	r.clean = p.deps.Sanitizer.Sanitize(r.req.Instruction, r.req.Language, len(r.req.Paragraphs))
	if r.clean.Language != "" {
		r.language = locale.Normalize(r.clean.Language)
	}
	end(nil)

	// 2. Session
	pending, err := p.loadSession(ctx, r)
	if err != nil {
		return err
	}

	// 3. Document context
	_, end = p.startPhase(ctx, r, "context")
	r.selection = intent.InRange(r.req.Selection, len(r.req.Paragraphs))
	r.doc = p.deps.Context.Build(r.req.Paragraphs, union(r.clean.References, r.selection))
	end(nil)

	// 4. Fast path
	handled, payload := p.fastPath(ctx, r, pending)
	if handled {
		r.persist = true
		return nil
	}

	// 5. Cache, classifier and validation
	fallback := false
	if payload == nil {
		payload, fallback, err = p.classify(ctx, r)
		if err != nil {
			return err
		}
	}

	// 6. Route and execute
	if err := p.route(ctx, r, *payload, fallback); err != nil {
		return err
	}
	r.persist = true
	return nil
}

func (p *Pipeline) loadSession(ctx context.Context, r *run) (*session.PendingIntent, error) {
	ctx, end := p.startPhase(ctx, r, "session")

	state, err := p.deps.Sessions.LoadOrCreate(ctx, r.req.SessionID)
	if err != nil {
		err = fmt.Errorf("%w: load session: %w", ErrUnknown, err)
		end(err)
		return nil, err
	}
	r.state = state

	pending, err := p.deps.Sessions.Pending(ctx, state)
	if errors.Is(err, session.ErrPendingExpired) {
		r.warn(err.Error())
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("%w: read pending intent: %w", ErrUnknown, err)
	}
	end(err)
	return pending, err
}

// fastPath reports whether the request was fully answered, or hands back a ready intent
func (p *Pipeline) fastPath(ctx context.Context, r *run, pending *session.PendingIntent) (bool, *intent.Payload) {
	ctx, end := p.startPhase(ctx, r, "fast_path")
	defer end(nil)

	out := p.deps.Gate.Evaluate(fastpath.Input{
		Instruction: r.clean.Instruction,
		Normalized:  r.clean.Normalized,
		Language:    r.language,
		Paragraphs:  r.req.Paragraphs,
		Pending:     pending,
	})

	if out.ClearPending && pending != nil {
		if err := p.deps.Sessions.ClearPending(ctx, r.req.SessionID); err != nil {
			p.logger.Warn("PIPELINE", "Failed to clear pending intent", map[string]interface{}{
				"session_id": r.req.SessionID,
				"error":      err.Error(),
			})
		}
	}
	if !out.Matched {
		return false, nil
	}

	r.result.Metadata.FastPath = string(out.Kind)
	if out.Language != "" {
		r.language = locale.Normalize(out.Language)
	}

	switch {
	case out.Cancelled:
		r.respond(ActionCancelled, out.Response)
		return true, nil
	case out.Terminal():
		r.respond(ActionFastPath, out.Response)
		return true, nil
	}

	// A confirmed preview built on this exact document is applied without re-executing
	if res := out.Resolution; res != nil && res.Preview != nil {
		if res.Preview.DocumentHash == r.doc.Hash {
			r.apply(*out.Intent, res.Preview.Result, ActionExecute)
			r.result.Metadata.RouteReason = "confirmed_preview"
			// the client applies these edits, so intents computed on this snapshot are obsolete
			p.invalidateDocument(ctx, r.doc.Hash)
			return true, nil
		}
		r.warn("preview_document_changed")
		p.invalidateDocument(ctx, res.Preview.DocumentHash)
	}
	return false, out.Intent
}

func (p *Pipeline) invalidateDocument(ctx context.Context, documentHash string) {
	if documentHash == "" {
		return
	}
	if _, err := p.deps.Cache.InvalidateByDocument(context.WithoutCancel(ctx), documentHash); err != nil {
		p.logger.Warn("PIPELINE", "Failed to invalidate document cache", map[string]interface{}{
			"document_hash": documentHash,
			"error":         err.Error(),
		})
	}
}

// classify resolves the intent from cache or classifier and validates it.
// The returned flag reports that validation failed and the fallback intent is used.
func (p *Pipeline) classify(ctx context.Context, r *run) (*intent.Payload, bool, error) {
	key := cache.Key{
		SessionID:       r.req.SessionID,
		InstructionHash: cache.HashInstruction(cacheText(r.clean)),
		DocumentHash:    r.doc.Hash,
	}

	raw, owner, err := p.lookupOrClassify(ctx, r, key)
	if err != nil {
		return nil, false, err
	}
	cached := r.result.Metadata.CacheHit

	// attach what the classifier was not trusted with
	raw.OriginalInstruction = r.clean.Instruction
	if raw.Language == "" {
		raw.Language = r.language
	}

	vctx, end := p.startPhase(ctx, r, "validate")
	vr := p.deps.Validator.Validate(*raw, validator.Context{
		ParagraphCount: len(r.req.Paragraphs),
		Instruction:    r.clean.Instruction,
		Language:       r.language,
	})
	r.result.Metadata.ValidationErrors = issueStrings(vr.Errors)
	r.result.Metadata.ValidationWarnings = issueStrings(vr.Warnings)

	storeCtx := context.WithoutCancel(vctx)
	if !vr.Valid {
		end(fmt.Errorf("%w: %d errors", ErrValidationFailure, len(vr.Errors)))
		switch {
		case cached:
			p.deps.Cache.MarkStale(storeCtx, key)
		case owner:
			p.deps.Cache.ReleaseComputeLock(storeCtx, key)
		}
		fb := validator.Fallback(r.clean.Instruction, r.language)
		return &fb, true, nil
	}
	end(nil)

	payload := vr.Payload.WithInstruction(r.clean.Instruction, r.language)
	if !cached {
		if err := p.deps.Cache.Store(storeCtx, key, payload.Raw()); err != nil {
			p.logger.Warn("PIPELINE", "Failed to cache intent", map[string]interface{}{"error": err.Error()})
			if owner {
				p.deps.Cache.ReleaseComputeLock(storeCtx, key)
			}
		}
	}
	return &payload, false, nil
}

// lookupOrClassify returns a cached payload or a fresh classifier result.
// owner reports that this request holds the compute lock.
func (p *Pipeline) lookupOrClassify(ctx context.Context, r *run, key cache.Key) (*intent.RawPayload, bool, error) {
	cctx, end := p.startPhase(ctx, r, "cache")
	hit := p.deps.Cache.Lookup(cctx, key)
	owner := false

	if !hit.Hit {
		owner = p.deps.Cache.AcquireComputeLock(cctx, key)
		if !owner {
			// best effort: give the other request one chance to finish, then compute anyway
			if err := p.wait(cctx, p.config.LockWait); err != nil {
				err = fmt.Errorf("%w: lock wait: %w", ErrUnknown, err)
				end(err)
				return nil, false, err
			}
			hit = p.deps.Cache.Lookup(cctx, key)
			if !hit.Hit {
				r.warn(ErrLockContention.Error())
				p.logger.Debug("PIPELINE", "Lock contention, classifying independently", map[string]interface{}{
					"request_id": r.result.RequestID,
				})
			}
		}
	}
	end(nil)

	if hit.Hit && hit.Value != nil {
		r.result.Metadata.CacheHit = true
		r.result.Metadata.CacheLayer = string(hit.Layer)
		value := *hit.Value
		return &value, false, nil
	}

	raw, err := p.guardClassify(ctx, r)
	if err != nil && owner {
		p.deps.Cache.ReleaseComputeLock(context.WithoutCancel(ctx), key)
	}
	return raw, owner, err
}

func (p *Pipeline) guardClassify(ctx context.Context, r *run) (*intent.RawPayload, error) {
	ctx, end := p.startPhase(ctx, r, "classify")

	in := ClassifyInput{
		Instruction: r.clean.Instruction,
		Language:    r.language,
		ModeHint:    r.clean.ModeHint,
		References:  r.clean.References,
		Selection:   r.selection,
		Mentioned:   r.state.Mentioned,
		History:     r.state.LastTurns(session.MaxTurns),
		Document:    r.doc,
	}
	res := breaker.Guard(ctx, p.deps.Breaker, p.config.ClassifierTimeout, func(ctx context.Context) (*intent.RawPayload, error) {
		return p.deps.Classifier.Classify(ctx, in)
	})

	r.result.Metadata.TimedOut = r.result.Metadata.TimedOut || res.TimedOut
	err := guardError(res.SafeModeUsed, res.TimedOut, res.Err, ErrClassificationTimeout, ErrClassificationFailure)
	if err == nil && res.Value == nil {
		err = fmt.Errorf("%w: empty classifier output", ErrClassificationFailure)
	}
	end(err)
	return res.Value, err
}

func (p *Pipeline) route(ctx context.Context, r *run, payload intent.Payload, validationFallback bool) error {
	rctx, end := p.startPhase(ctx, r, "route")
	d := p.deps.Router.Decide(rctx, router.Input{
		SessionID:  r.req.SessionID,
		Intent:     payload,
		Paragraphs: r.req.Paragraphs,
		Selection:  r.selection,
		Mentioned:  r.state.Mentioned,
	})
	end(nil)

	r.result.Mode = d.Intent.Mode
	r.result.Metadata.Confidence = payload.Confidence
	r.result.Metadata.RouteReason = d.Reason

	switch d.Action {
	case router.ActionClarify:
		r.result.Action = ActionClarify
		r.result.Reply = d.Question
		r.result.Options = d.Options
		return nil
	case router.ActionConfirm:
		return p.preview(ctx, r, d)
	}

	action := ActionExecute
	if validationFallback || d.Action == router.ActionFallback {
		action = ActionFallback
	}
	out, err := p.execute(ctx, r, d.Intent)
	if err != nil {
		return err
	}
	r.apply(d.Intent, out, action)
	return nil
}

// preview runs the executor once and parks the result as a pending confirmation
func (p *Pipeline) preview(ctx context.Context, r *run, d router.Decision) error {
	out, err := p.execute(ctx, r, d.Intent)
	if err != nil {
		return err
	}
	if len(out.Edits) == 0 {
		r.apply(d.Intent, out, ActionExecute)
		return nil
	}

	proposal := intent.Proposal{Result: out, DocumentHash: r.doc.Hash}
	if _, err := p.deps.Sessions.SetPendingConfirmation(ctx, r.req.SessionID, d.Intent, proposal, d.Options); err != nil {
		return fmt.Errorf("%w: store preview: %w", ErrUnknown, err)
	}

	r.apply(d.Intent, out, ActionConfirm)
	r.result.Reply = d.Question
	r.result.Options = d.Options
	r.result.RequiresConfirmation = true
	return nil
}

func (p *Pipeline) execute(ctx context.Context, r *run, payload intent.Payload) (intent.ModeResult, error) {
	ectx, end := p.startPhase(ctx, r, "execute")

	doc := r.doc
	if len(payload.TargetParagraphs) > 0 {
		doc = p.deps.Context.Build(r.req.Paragraphs, payload.TargetParagraphs)
	}
	in := ExecuteInput{
		Intent:      payload,
		Instruction: r.clean.Instruction,
		History:     r.state.LastTurns(session.MaxTurns),
		Document:    doc,
	}
	res := breaker.Guard(ectx, p.deps.Breaker, p.config.ExecutorTimeout, func(ctx context.Context) (intent.ModeResult, error) {
		return p.deps.Executors.Execute(ctx, in)
	})

	r.result.Metadata.TimedOut = r.result.Metadata.TimedOut || res.TimedOut
	err := guardError(res.SafeModeUsed, res.TimedOut, res.Err, ErrExecutionTimeout, ErrExecutionFailure)
	end(err)
	if err != nil {
		return intent.ModeResult{}, err
	}

	_, vend := p.startPhase(ctx, r, "output_validation")
	out := p.deps.Validator.ValidateOutput(res.Value, payload, r.req.Paragraphs)
	r.result.Metadata.Rejected = append(r.result.Metadata.Rejected, out.Rejected...)
	r.result.Metadata.ValidationWarnings = append(r.result.Metadata.ValidationWarnings, issueStrings(out.Warnings)...)
	vend(nil)
	return out.Result, nil
}

// persistTurn records the exchange; failures are logged, never surfaced
func (p *Pipeline) persistTurn(ctx context.Context, r *run) {
	ctx, end := p.startPhase(context.WithoutCancel(ctx), r, "persist")
	defer end(nil)

	id := r.req.SessionID
	mode := r.result.Mode
	reply := r.result.Reply
	if reply == "" {
		reply = fmt.Sprintf("%d edits, %d highlights", len(r.result.Edits), len(r.result.Highlights))
	}

	steps := []func() error{
		func() error { return p.deps.Sessions.AddTurn(ctx, id, session.RoleUser, r.clean.Instruction, mode) },
		func() error { return p.deps.Sessions.AddTurn(ctx, id, session.RoleAssistant, reply, mode) },
		func() error { return p.deps.Sessions.RememberParagraphs(ctx, id, r.mentioned) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			r.warn("session_not_saved")
			p.logger.Warn("PIPELINE", "Failed to persist turn", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
			return
		}
	}
}

func (p *Pipeline) finish(span trace.Span, r *run, start time.Time) {
	res := r.result
	res.Language = r.language
	res.Metadata.Timings["total"] = p.now().Sub(start).Milliseconds()
	if p.deps.Breaker != nil {
		res.Metadata.BreakerState = string(p.deps.Breaker.Status())
	}

	span.SetAttributes(
		attribute.String("assistant.action", string(res.Action)),
		attribute.String("assistant.mode", string(res.Mode)),
		attribute.Bool("assistant.cache_hit", res.Metadata.CacheHit),
		attribute.Bool("assistant.safe_mode", res.Metadata.SafeMode),
	)

	p.logger.Info("PIPELINE", "Instruction processed", map[string]interface{}{
		"request_id": res.RequestID,
		"session_id": r.req.SessionID,
		"action":     res.Action,
		"mode":       res.Mode,
		"cache_hit":  res.Metadata.CacheHit,
		"fast_path":  res.Metadata.FastPath,
		"total_ms":   res.Metadata.Timings["total"],
	})

	p.publish(r)
}

func (p *Pipeline) publish(r *run) {
	if p.deps.Publisher == nil {
		return
	}
	res := r.result
	event := events.NewInstructionProcessed(map[string]interface{}{
		"request_id": res.RequestID,
		"session_id": r.req.SessionID,
		"action":     string(res.Action),
		"mode":       string(res.Mode),
		"language":   res.Language,
		"cache_hit":  res.Metadata.CacheHit,
		"safe_mode":  res.Metadata.SafeMode,
		"timed_out":  res.Metadata.TimedOut,
		"fast_path":  res.Metadata.FastPath,
		"edits":      len(res.Edits),
		"highlights": len(res.Highlights),
		"total_ms":   res.Metadata.Timings["total"],
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
		defer cancel()
		if err := p.deps.Publisher.Publish(ctx, event); err != nil {
			p.logger.Warn("PIPELINE", "Failed to publish event", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}()
}

// startPhase opens a span and returns a closer that records the phase timing
func (p *Pipeline) startPhase(ctx context.Context, r *run, name string) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, "assistant."+name)
	start := p.now()
	return ctx, func(err error) {
		r.result.Metadata.Timings[name] += p.now().Sub(start).Milliseconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (p *Pipeline) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// guardError maps a guarded call outcome onto the error taxonomy
func guardError(safeMode, timedOut bool, err, timeoutErr, failureErr error) error {
	switch {
	case safeMode:
		return fmt.Errorf("%w: %w", failureErr, breaker.ErrCircuitOpen)
	case timedOut && err != nil:
		return fmt.Errorf("%w: %w", timeoutErr, err)
	case timedOut:
		return timeoutErr
	case err != nil:
		return fmt.Errorf("%w: %w", failureErr, err)
	}
	return nil
}

func issueStrings(issues []validator.Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}

// cacheText is the hashed instruction; a directive changes the answer, so it is part of the key
func cacheText(s Sanitized) string {
	if s.ModeHint == "" {
		return s.Normalized
	}
	return "/" + string(s.ModeHint) + " " + s.Normalized
}

// union keeps first-seen order
func union(lists ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, list := range lists {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
