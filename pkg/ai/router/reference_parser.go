package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ReferenceType indicates how the reference was specified
type ReferenceType string

const (
	ReferenceTypeExplicit ReferenceType = "explicit" // @p:3 or ¶3
	ReferenceTypeWiki     ReferenceType = "wiki"     // [[3]]
	ReferenceTypeNatural  ReferenceType = "natural"  // "paragraph 3", "párrafo 3", "paragraf 3"
	ReferenceTypeOrdinal  ReferenceType = "ordinal"  // "second paragraph", "último párrafo"
)

// LastParagraph is the sentinel Position for "the last paragraph"
const LastParagraph = -1

// ParsedReference represents a single paragraph reference extracted from an instruction
type ParsedReference struct {
	Type        ReferenceType
	Position    int    // 1-based as the user wrote it, or LastParagraph
	Syntax      string // "@p:", "¶", "[[]]", "natural", "ordinal"
	OriginalRaw string
}

// ReferenceParseResult contains all parsed references and the cleaned instruction
type ReferenceParseResult struct {
	References  []ParsedReference
	CleanPrompt string // Instruction with explicit markers removed
	HasRefs     bool
}

// Reference patterns:
// @p:3          - Editor-inserted paragraph mention
// ¶3            - Pilcrow mention
// [[3]]         - Wiki-style mention
// paragraph 3   - Natural language (en/es/id)
// second paragraph / segundo párrafo / paragraf kedua / last paragraph
var (
	atParagraphPattern = regexp.MustCompile(`@p:(\d+)`)
	pilcrowPattern     = regexp.MustCompile(`¶\s?(\d+)`)
	wikiLinkPattern    = regexp.MustCompile(`\[\[\s*(\d+)\s*\]\]`)
	naturalPattern     = regexp.MustCompile(`(?i)\b(?:paragraph|p[aá]rrafo|paragraf)\s*(?:no\.?\s*|n[uú]mero\s*|#)?(\d+)\b`)
	ordinalBefore      = regexp.MustCompile(`(?i)(?:^|[^\pL])((first|second|third|fourth|fifth|last|primer|primero|segundo|tercer|tercero|cuarto|quinto|[uú]ltimo)\s+(?:paragraph|p[aá]rrafo))\b`)
	ordinalAfter       = regexp.MustCompile(`(?i)(\b(?:paragraf|p[aá]rrafo)\s+(pertama|kedua|ketiga|keempat|kelima|terakhir|primero|segundo|tercero|cuarto|quinto|[uú]ltimo))\b`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "last": LastParagraph,
	"primer": 1, "primero": 1, "segundo": 2, "tercer": 3, "tercero": 3, "cuarto": 4, "quinto": 5,
	"ultimo": LastParagraph, "último": LastParagraph,
	"pertama": 1, "kedua": 2, "ketiga": 3, "keempat": 4, "kelima": 5, "terakhir": LastParagraph,
}

// ParseParagraphReferences extracts paragraph references from an instruction.
// Explicit markers are removed from the clean prompt; natural phrases are kept since they carry meaning.
func ParseParagraphReferences(prompt string) *ReferenceParseResult {
	result := &ReferenceParseResult{
		References:  make([]ParsedReference, 0),
		CleanPrompt: prompt,
	}

	// Track explicit matches for removal
	var explicit []string

	// 1. Explicit markers
	for _, p := range []struct {
		re     *regexp.Regexp
		typ    ReferenceType
		syntax string
	}{
		{atParagraphPattern, ReferenceTypeExplicit, "@p:"},
		{pilcrowPattern, ReferenceTypeExplicit, "¶"},
		{wikiLinkPattern, ReferenceTypeWiki, "[[]]"},
	} {
		for _, match := range p.re.FindAllStringSubmatch(prompt, -1) {
			if n, err := strconv.Atoi(match[1]); err == nil {
				result.References = append(result.References, ParsedReference{
					Type:        p.typ,
					Position:    n,
					Syntax:      p.syntax,
					OriginalRaw: match[0],
				})
				explicit = append(explicit, match[0])
			}
		}
	}

	// 2. Natural language numbers
	for _, match := range naturalPattern.FindAllStringSubmatch(prompt, -1) {
		if n, err := strconv.Atoi(match[1]); err == nil {
			result.References = append(result.References, ParsedReference{
				Type:        ReferenceTypeNatural,
				Position:    n,
				Syntax:      "natural",
				OriginalRaw: match[0],
			})
		}
	}

	// 3. Ordinal words
	for _, re := range []*regexp.Regexp{ordinalBefore, ordinalAfter} {
		for _, match := range re.FindAllStringSubmatch(prompt, -1) {
			if pos, ok := ordinals[strings.ToLower(match[2])]; ok {
				result.References = append(result.References, ParsedReference{
					Type:        ReferenceTypeOrdinal,
					Position:    pos,
					Syntax:      "ordinal",
					OriginalRaw: match[1],
				})
			}
		}
	}

	cleanPrompt := prompt
	for _, match := range explicit {
		cleanPrompt = strings.Replace(cleanPrompt, match, "", 1)
	}
	cleanPrompt = strings.TrimSpace(cleanPrompt)
	cleanPrompt = whitespacePattern.ReplaceAllString(cleanPrompt, " ")

	result.CleanPrompt = cleanPrompt
	result.HasRefs = len(result.References) > 0

	return result
}

// MaxReferences is the hard limit for references in a single instruction
const MaxReferences = 10

// ValidateReferences checks if references are within limits
func ValidateReferences(refs []ParsedReference) error {
	if len(refs) > MaxReferences {
		return ErrTooManyReferences{Count: len(refs)}
	}
	return nil
}

// ErrTooManyReferences is returned when more than MaxReferences are provided
type ErrTooManyReferences struct {
	Count int
}

func (e ErrTooManyReferences) Error() string {
	return fmt.Sprintf("too many paragraph references: %d given, maximum %d allowed", e.Count, MaxReferences)
}
