package fastpath

import (
	"fmt"
	"os"
	"regexp"

	"ai-editor-be/pkg/ai/locale"

	"gopkg.in/yaml.v3"
)

// LanguagePatterns is one language's regex table
type LanguagePatterns struct {
	Greeting []string `yaml:"greeting"`
	Help     []string `yaml:"help"`
	Thanks   []string `yaml:"thanks"`
	Farewell []string `yaml:"farewell"`
	Typos    []string `yaml:"typos"`
	// EditVerbs keep a typo request on the classifier path when the user asks to fix rather than find
	EditVerbs []string `yaml:"edit_verbs"`
}

// PatternFile is the YAML layout:
//
//	languages:
//	  es:
//	    greeting: ["^hola\\b"]
type PatternFile struct {
	Languages map[string]LanguagePatterns `yaml:"languages"`
}

// DefaultPatterns returns the built-in tables for es, en and id
func DefaultPatterns() PatternFile {
	return PatternFile{Languages: map[string]LanguagePatterns{
		locale.Spanish: {
			Greeting: []string{
				`^(hola|holi|buenas|buenos d[ií]as|buenas (tardes|noches)|hey|saludos)[\s!¡.,]*$`,
				`^(hola|buenas)[,!\s]+(qu[eé] tal|c[oó]mo est[aá]s)[\s?¿!.]*$`,
			},
			Help: []string{
				`^¿?(ayuda|ay[uú]dame)[\s?!.]*$`,
				`^¿?(qu[eé] (puedes|sabes) hacer|c[oó]mo (funciona|te uso|funcionas))[\s?!.]*$`,
			},
			Thanks: []string{
				`^(gracias|muchas gracias|mil gracias|genial,? gracias|perfecto,? gracias)[\s!.]*$`,
			},
			Farewell: []string{
				`^(adi[oó]s|chao|chau|hasta luego|hasta pronto|nos vemos)[\s!.]*$`,
			},
			Typos: []string{
				`\b(errores|faltas)\s+(de\s+)?(ortograf[ií]a|ortogr[aá]fic[oa]s|gramatical(es)?|tipogr[aá]fic[oa]s)\b`,
				`\b(hay|tiene|ves|encuentra|busca|se[ñn]ala|marca|resalta)\b.*\b(errores|faltas|erratas)\b`,
			},
			EditVerbs: []string{`\b(corrige|corregir|arregla|arreglar|cambia|reescribe|modifica)\b`},
		},
		locale.English: {
			Greeting: []string{
				`^(hi|hello|hey|hiya|good (morning|afternoon|evening)|greetings)[\s!.,]*$`,
				`^(hi|hello|hey)[,!\s]+(how are you|what'?s up)[\s?!.]*$`,
			},
			Help: []string{
				`^(help|help me)[\s?!.]*$`,
				`^(what can you do|how does this work|how do i use (this|you))[\s?!.]*$`,
			},
			Thanks: []string{
				`^(thanks|thank you|thx|ty|thanks a lot|great,? thanks|perfect,? thanks)[\s!.]*$`,
			},
			Farewell: []string{
				`^(bye|goodbye|see you|see ya|later|good night)[\s!.]*$`,
			},
			Typos: []string{
				`\b(typos?|misspellings?|spelling (mistakes|errors)|grammar (mistakes|errors)|grammatical errors)\b`,
				`\b(find|show|highlight|spot|check|any|are there)\b.*\b(mistakes|errors)\b`,
			},
			EditVerbs: []string{`\b(fix|correct|rewrite|change|edit|repair)\b`},
		},
		locale.Indonesian: {
			Greeting: []string{
				`^(halo|hai|hi|selamat (pagi|siang|sore|malam)|assalamualaikum)[\s!.,]*$`,
				`^(halo|hai)[,!\s]+(apa kabar)[\s?!.]*$`,
			},
			Help: []string{
				`^(bantuan|tolong|bantu saya)[\s?!.]*$`,
				`^(apa yang bisa kamu lakukan|bagaimana cara (pakai|menggunakan)(nya)?)[\s?!.]*$`,
			},
			Thanks: []string{
				`^(terima kasih|makasih|trims|thanks)[\s!.]*$`,
			},
			Farewell: []string{
				`^(dah|dadah|sampai jumpa|sampai nanti|bye)[\s!.]*$`,
			},
			Typos: []string{
				`\b(salah ketik|typo|kesalahan (ejaan|tata bahasa|penulisan))\b`,
				`\b(cari|tandai|tunjukkan|cek|periksa|ada)\b.*\b(kesalahan|salah)\b`,
			},
			EditVerbs: []string{`\b(perbaiki|betulkan|ubah|ganti|tulis ulang)\b`},
		},
	}}
}

// LoadPatterns reads a YAML pattern file and overlays it on the defaults.
// A language present in the file replaces only the categories it lists.
func LoadPatterns(path string) (PatternFile, error) {
	patterns := DefaultPatterns()
	if path == "" {
		return patterns, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return patterns, fmt.Errorf("read pattern file: %w", err)
	}

	var file PatternFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return patterns, fmt.Errorf("parse pattern file: %w", err)
	}

	for lang, override := range file.Languages {
		base := patterns.Languages[lang]
		if len(override.Greeting) > 0 {
			base.Greeting = override.Greeting
		}
		if len(override.Help) > 0 {
			base.Help = override.Help
		}
		if len(override.Thanks) > 0 {
			base.Thanks = override.Thanks
		}
		if len(override.Farewell) > 0 {
			base.Farewell = override.Farewell
		}
		if len(override.Typos) > 0 {
			base.Typos = override.Typos
		}
		if len(override.EditVerbs) > 0 {
			base.EditVerbs = override.EditVerbs
		}
		patterns.Languages[lang] = base
	}
	return patterns, nil
}

// compiledLanguage holds ready-to-run expressions for one language
type compiledLanguage struct {
	greeting  []*regexp.Regexp
	help      []*regexp.Regexp
	thanks    []*regexp.Regexp
	farewell  []*regexp.Regexp
	typos     []*regexp.Regexp
	editVerbs []*regexp.Regexp
}

func compile(file PatternFile) (map[string]*compiledLanguage, error) {
	out := make(map[string]*compiledLanguage, len(file.Languages))
	for lang, p := range file.Languages {
		cl := &compiledLanguage{}
		groups := []struct {
			src []string
			dst *[]*regexp.Regexp
		}{
			{p.Greeting, &cl.greeting},
			{p.Help, &cl.help},
			{p.Thanks, &cl.thanks},
			{p.Farewell, &cl.farewell},
			{p.Typos, &cl.typos},
			{p.EditVerbs, &cl.editVerbs},
		}
		for _, g := range groups {
			for _, expr := range g.src {
				re, err := regexp.Compile("(?i)" + expr)
				if err != nil {
					return nil, fmt.Errorf("compile %s pattern %q: %w", lang, expr, err)
				}
				*g.dst = append(*g.dst, re)
			}
		}
		out[lang] = cl
	}
	return out, nil
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
