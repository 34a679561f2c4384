// Package fastpath resolves trivial or already-clarified requests without calling the classifier.
package fastpath

import (
	"regexp"
	"strings"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/locale"
	"ai-editor-be/pkg/ai/session"
)

// Kind names the matcher that produced an outcome
type Kind string

const (
	KindPendingResolution Kind = "pending_resolution"
	KindEmptyDocument     Kind = "empty_document"
	KindGreeting          Kind = "greeting"
	KindHelp              Kind = "help"
	KindThanks            Kind = "thanks"
	KindFarewell          Kind = "farewell"
	KindErrorsTypos       Kind = "errors_typos"
)

// TyposConfidence is the confidence assigned to a synthesized typo-finding intent
const TyposConfidence = 0.9

// Input is what matchers see. Matchers must not mutate it.
type Input struct {
	Instruction string // as typed
	Normalized  string // sanitizer output
	Language    string
	Paragraphs  []intent.Paragraph
	Pending     *session.PendingIntent
}

// Outcome is the gate's verdict.
// Matched with Response set terminates the pipeline; Matched with Intent skips the classifier.
// ClearPending asks the caller to drop the session's pending intent, even when nothing matched.
type Outcome struct {
	Matched      bool
	Kind         Kind
	Language     string
	Response     string
	Cancelled    bool
	Intent       *intent.Payload
	Resolution   *session.Resolution
	ClearPending bool
}

// Terminal reports whether the outcome is a final response
func (o Outcome) Terminal() bool {
	return o.Matched && o.Intent == nil
}

// Matcher is one cheap, pure check
type Matcher interface {
	Kind() Kind
	Match(in Input) Outcome
}

// Gate evaluates matchers in order; the first match wins
type Gate struct {
	matchers []Matcher
	logger   logger.ILogger
}

// NewGate builds the standard matcher chain from pattern tables
func NewGate(patterns PatternFile, log logger.ILogger) (*Gate, error) {
	compiled, err := compile(patterns)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Gate{
		matchers: []Matcher{
			pendingMatcher{},
			emptyDocumentMatcher{},
			&cannedMatcher{languages: compiled},
			&typosMatcher{languages: compiled},
		},
		logger: log,
	}, nil
}

// NewGateWithMatchers builds a gate from an explicit chain
func NewGateWithMatchers(log logger.ILogger, matchers ...Matcher) *Gate {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Gate{matchers: matchers, logger: log}
}

// Evaluate runs the chain. Side effects of non-matching matchers are carried into the result.
func (g *Gate) Evaluate(in Input) Outcome {
	clearPending := false
	for _, m := range g.matchers {
		out := m.Match(in)
		clearPending = clearPending || out.ClearPending
		if !out.Matched {
			continue
		}

		out.ClearPending = out.ClearPending || clearPending
		g.logger.Debug("FASTPATH", "Matched", map[string]interface{}{
			"matcher":  out.Kind,
			"terminal": out.Terminal(),
		})
		return out
	}
	return Outcome{ClearPending: clearPending}
}

// pendingMatcher resolves a reply to an outstanding clarification or confirmation
type pendingMatcher struct{}

func (pendingMatcher) Kind() Kind { return KindPendingResolution }

func (pendingMatcher) Match(in Input) Outcome {
	if in.Pending == nil {
		return Outcome{}
	}

	res := session.Resolve(in.Pending, in.Instruction)
	lang := in.Pending.Original.Language
	if lang == "" {
		lang = in.Language
	}

	switch res.Outcome {
	case session.OutcomeCancelled:
		return Outcome{
			Matched:      true,
			Kind:         KindPendingResolution,
			Language:     lang,
			Response:     locale.For(lang).Cancelled,
			Cancelled:    true,
			Resolution:   &res,
			ClearPending: true,
		}
	case session.OutcomeResolved:
		return Outcome{
			Matched:      true,
			Kind:         KindPendingResolution,
			Language:     lang,
			Intent:       res.Intent,
			Resolution:   &res,
			ClearPending: true,
		}
	}
	// the user moved on; drop the stale question and classify normally
	return Outcome{ClearPending: true}
}

type emptyDocumentMatcher struct{}

func (emptyDocumentMatcher) Kind() Kind { return KindEmptyDocument }

func (emptyDocumentMatcher) Match(in Input) Outcome {
	for _, p := range in.Paragraphs {
		if strings.TrimSpace(p.Text) != "" {
			return Outcome{}
		}
	}
	return Outcome{
		Matched:  true,
		Kind:     KindEmptyDocument,
		Language: in.Language,
		Response: locale.For(in.Language).EmptyDocument,
	}
}

// cannedMatcher answers greetings, help requests, thanks and farewells
type cannedMatcher struct {
	languages map[string]*compiledLanguage
}

func (*cannedMatcher) Kind() Kind { return KindGreeting }

func (m *cannedMatcher) Match(in Input) Outcome {
	text := subject(in)
	for _, lang := range languageOrder(in.Language) {
		cl, ok := m.languages[lang]
		if !ok {
			continue
		}
		msgs := locale.For(lang)
		checks := []struct {
			kind     Kind
			patterns []*regexp.Regexp
			reply    string
		}{
			{KindGreeting, cl.greeting, msgs.Greeting},
			{KindHelp, cl.help, msgs.Help},
			{KindThanks, cl.thanks, msgs.Thanks},
			{KindFarewell, cl.farewell, msgs.Farewell},
		}
		for _, c := range checks {
			if anyMatch(c.patterns, text) {
				return Outcome{Matched: true, Kind: c.kind, Language: lang, Response: c.reply}
			}
		}
	}
	return Outcome{}
}

// typosMatcher turns "find the typos" into a locate intent over the whole document
type typosMatcher struct {
	languages map[string]*compiledLanguage
}

func (*typosMatcher) Kind() Kind { return KindErrorsTypos }

func (m *typosMatcher) Match(in Input) Outcome {
	text := subject(in)
	for _, lang := range languageOrder(in.Language) {
		cl, ok := m.languages[lang]
		if !ok || !anyMatch(cl.typos, text) {
			continue
		}
		if anyMatch(cl.editVerbs, text) {
			return Outcome{}
		}

		language := in.Language
		if language == "" {
			language = lang
		}
		synthesized := SynthesizeTyposIntent(in.Instruction, language, in.Paragraphs)
		return Outcome{Matched: true, Kind: KindErrorsTypos, Language: language, Intent: &synthesized}
	}
	return Outcome{}
}

// SynthesizeTyposIntent builds the locate intent covering every paragraph
func SynthesizeTyposIntent(instruction, language string, paragraphs []intent.Paragraph) intent.Payload {
	targets := make([]int, 0, len(paragraphs))
	for _, p := range paragraphs {
		targets = append(targets, p.ID)
	}
	return intent.Payload{
		Mode:                intent.ModeLocate,
		Confidence:          TyposConfidence,
		TargetParagraphs:    targets,
		Modification:        intent.KindPtr(intent.ModCorrection),
		Risk:                intent.RiskLow,
		Scope:               intent.ScopeDocument,
		Language:            language,
		Reasoning:           "errors/typos request matched without classification",
		OriginalInstruction: instruction,
	}
}

func subject(in Input) string {
	if in.Normalized != "" {
		return strings.TrimSpace(in.Normalized)
	}
	return strings.TrimSpace(in.Instruction)
}

// languageOrder puts the detected language first, then the rest of the supported set
func languageOrder(detected string) []string {
	first := locale.Normalize(detected)
	order := []string{first}
	for _, l := range locale.Supported {
		if l != first {
			order = append(order, l)
		}
	}
	return order
}
