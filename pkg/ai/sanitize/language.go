package sanitize

import (
	"strings"
	"unicode"

	"ai-editor-be/pkg/ai/locale"
)

// stopwords are frequent function words; a hit counts once per token
var stopwords = map[string]map[string]bool{
	locale.Spanish: set("el", "la", "los", "las", "de", "del", "que", "y", "en", "un", "una", "por",
		"para", "con", "es", "este", "esta", "mi", "qué", "cómo", "párrafo", "texto", "hola", "gracias",
		"corrige", "cambia", "reescribe", "hay", "errores", "tono", "más", "muy"),
	locale.English: set("the", "a", "an", "of", "and", "to", "in", "is", "are", "this", "that", "my",
		"what", "how", "paragraph", "text", "hello", "thanks", "fix", "change", "rewrite", "make",
		"please", "any", "errors", "tone", "more", "can", "you", "it"),
	locale.Indonesian: set("yang", "dan", "di", "ke", "dari", "ini", "itu", "dengan", "untuk", "apa",
		"bagaimana", "paragraf", "teks", "halo", "terima", "kasih", "tolong", "perbaiki", "ubah",
		"tulis", "ulang", "ada", "kesalahan", "nada", "lebih", "saya", "bisa", "tidak"),
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// DetectLanguage scores stopword hits; ties and empty input fall back to the default.
// Spanish-only punctuation is a strong signal.
func DetectLanguage(normalized string) string {
	if strings.ContainsAny(normalized, "¿¡ñ") {
		return locale.Spanish
	}

	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	best, bestScore, tie := locale.Default, 0, false
	for _, lang := range locale.Supported {
		score := 0
		for _, tok := range tokens {
			if stopwords[lang][tok] {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = lang, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return locale.Default
	}
	return best
}
