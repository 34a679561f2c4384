// Package sanitize is the default input cleaner: control characters, mode directives,
// paragraph references and a lightweight language guess.
package sanitize

import (
	"strings"
	"unicode"

	"ai-editor-be/internal/pkg/logger"
	"ai-editor-be/pkg/ai/locale"
	"ai-editor-be/pkg/ai/pipeline"
	"ai-editor-be/pkg/ai/router"
)

// MaxInstructionRunes caps what reaches the classifier
const MaxInstructionRunes = 2000

// Sanitizer implements pipeline.Sanitizer
type Sanitizer struct {
	logger logger.ILogger
}

var _ pipeline.Sanitizer = (*Sanitizer)(nil)

func New(log logger.ILogger) *Sanitizer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Sanitizer{logger: log}
}

// Sanitize cleans the instruction. A supported language hint wins over detection.
func (s *Sanitizer) Sanitize(instruction, languageHint string, paragraphCount int) pipeline.Sanitized {
	cleaned := stripControl(instruction)
	if r := []rune(cleaned); len(r) > MaxInstructionRunes {
		cleaned = string(r[:MaxInstructionRunes])
	}

	parsed := router.Parse(cleaned)
	text := parsed.CleanPrompt
	if parsed.IsEmpty() {
		// a bare "/edit" still carries the user's words
		text = strings.TrimSpace(cleaned)
	}

	out := pipeline.Sanitized{
		Instruction: text,
		Normalized:  Normalize(text),
		ModeHint:    parsed.ModeHint,
	}

	refs := router.ParseParagraphReferences(text)
	if refs.HasRefs {
		list := refs.References
		if err := router.ValidateReferences(list); err != nil {
			s.logger.Warn("SANITIZE", "Reference limit exceeded, truncating", map[string]interface{}{
				"error": err.Error(),
			})
			list = list[:router.MaxReferences]
		}
		out.References = router.ReferencedIDs(router.ResolveReferences(list, paragraphCount))
	}

	if hint := strings.TrimSpace(languageHint); hint != "" && isSupported(hint) {
		out.Language = locale.Normalize(hint)
	} else {
		out.Language = DetectLanguage(out.Normalized)
	}
	return out
}

// Normalize lowercases and collapses whitespace
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// stripControl drops control characters; line breaks and tabs become spaces
func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r), r == unicode.ReplacementChar:
		case unicode.Is(unicode.Cf, r):
			// zero-width and bidi formatting marks
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isSupported(lang string) bool {
	lang = strings.ToLower(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	for _, l := range locale.Supported {
		if l == lang {
			return true
		}
	}
	return false
}
