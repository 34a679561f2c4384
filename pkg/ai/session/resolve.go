package session

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"ai-editor-be/pkg/ai/intent"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ClarificationBoost is added to the confidence of an intent completed by the user
const (
	ClarificationBoost  = 0.15
	MaxMergedConfidence = 0.95
)

type Outcome string

const (
	OutcomeResolved  Outcome = "resolved"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeNoMatch   Outcome = "no_match"
)

// Resolution is the result of matching a reply against a pending intent
type Resolution struct {
	Outcome   Outcome
	Intent    *intent.Payload
	Option    *Option
	Preview   *intent.Proposal // set for an accepted confirmation
	MatchedBy string
}

var negativeTokens = map[string]bool{
	"no": true, "nope": true, "cancel": true, "stop": true, "never mind": true, "nevermind": true,
	"forget it": true, "abort": true, "no thanks": true,
	"cancelar": true, "cancela": true, "nada": true, "olvidalo": true, "dejalo": true, "no gracias": true,
	"tidak": true, "gak": true, "enggak": true, "nggak": true, "jangan": true, "batal": true, "batalkan": true,
}

var affirmativeTokens = map[string]bool{
	"yes": true, "y": true, "ok": true, "okay": true, "sure": true, "confirm": true, "go ahead": true, "do it": true,
	"si": true, "claro": true, "dale": true, "adelante": true, "confirmo": true, "confirmar": true, "hazlo": true, "vale": true,
	"ya": true, "iya": true, "oke": true, "lanjut": true, "boleh": true, "setuju": true,
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases, strips accents and collapses whitespace
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// words splits folded text on anything that is not a letter or digit
func words(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isNegative(folded string) bool {
	w := words(folded)
	if len(w) == 0 {
		return false
	}
	if negativeTokens[strings.Join(w, " ")] {
		return true
	}
	// short replies led by a refusal: "no, gracias", "cancel that"
	return len(w) <= 3 && negativeTokens[w[0]]
}

func isAffirmative(folded string) bool {
	w := words(folded)
	if len(w) == 0 {
		return false
	}
	if affirmativeTokens[strings.Join(w, " ")] {
		return true
	}
	return len(w) <= 4 && affirmativeTokens[w[0]]
}

// Resolve matches a free-text reply against a pending intent.
// Order: negative tokens (any state), exact option, 1-based index, folded substring
// either way, then affirmative tokens for confirmations only.
func Resolve(pending *PendingIntent, reply string) Resolution {
	if pending == nil {
		return Resolution{Outcome: OutcomeNoMatch}
	}

	trimmed := strings.TrimSpace(reply)
	folded := Fold(trimmed)

	if isNegative(folded) {
		return Resolution{Outcome: OutcomeCancelled, MatchedBy: "negative"}
	}

	if opt, by := matchOption(pending.Options, trimmed, folded); opt != nil {
		if pending.State == StateWaitingConfirmation {
			if Fold(opt.Value) == "no" || isNegative(Fold(opt.Value)) {
				return Resolution{Outcome: OutcomeCancelled, Option: opt, MatchedBy: by}
			}
			return confirm(pending, opt, by)
		}
		merged := Merge(pending.Original, pending.Missing, opt.Value)
		return Resolution{Outcome: OutcomeResolved, Intent: &merged, Option: opt, MatchedBy: by}
	}

	if pending.State == StateWaitingConfirmation && isAffirmative(folded) {
		return confirm(pending, nil, "affirmative")
	}

	return Resolution{Outcome: OutcomeNoMatch}
}

func confirm(pending *PendingIntent, opt *Option, by string) Resolution {
	merged := Merge(pending.Original, MissingConfirmation, "")
	return Resolution{
		Outcome:   OutcomeResolved,
		Intent:    &merged,
		Option:    opt,
		Preview:   pending.Preview,
		MatchedBy: by,
	}
}

func matchOption(options []Option, trimmed, folded string) (*Option, string) {
	if len(options) == 0 || folded == "" {
		return nil, ""
	}

	for i := range options {
		if trimmed == options[i].Label {
			return &options[i], "exact"
		}
	}
	for i := range options {
		if folded == Fold(options[i].Label) {
			return &options[i], "exact"
		}
	}

	if n, err := strconv.Atoi(strings.Trim(folded, ".)#")); err == nil {
		if n >= 1 && n <= len(options) {
			return &options[n-1], "index"
		}
		return nil, ""
	}

	// longest label wins so "informal" beats "formal" inside "more informal"
	var best *Option
	bestLen := 0
	for i := range options {
		label := Fold(options[i].Label)
		if label == "" {
			continue
		}
		if strings.Contains(folded, label) || (len(folded) >= 3 && strings.Contains(label, folded)) {
			if len(label) > bestLen {
				best, bestLen = &options[i], len(label)
			}
		}
	}
	if best != nil {
		return best, "substring"
	}
	return nil, ""
}

// Merge fills the missing field of original with value and marks it as clarified
func Merge(original intent.Payload, missing MissingParam, value string) intent.Payload {
	out := original.Clone()

	switch missing {
	case MissingTone:
		out.Tone = intent.StringPtr(value)
		if out.Modification == nil {
			out.Modification = intent.KindPtr(intent.ModToneChange)
		}
	case MissingTargetParagraph:
		if id, ok := intent.CoerceInt(value); ok {
			out.TargetParagraphs = []int{id}
			out.Scope = intent.ScopeParagraphs
		}
	case MissingModification:
		if k := intent.ModificationKind(value); k.IsValid() {
			out.Modification = &k
		}
	case MissingMode:
		if m, _, ok := intent.ParseMode(value); ok {
			out.Mode = m
			if m.Mutates() && out.Modification == nil {
				out.Modification = intent.KindPtr(intent.DefaultEditingKind)
			}
		}
	case MissingConfirmation:
		out.Confirmed = true
	}

	out.Confidence = math.Min(out.Confidence+ClarificationBoost, MaxMergedConfidence)
	out.FromClarification = true
	return out
}
