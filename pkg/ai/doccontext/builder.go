// Package doccontext windows a document around the paragraphs an instruction is about.
package doccontext

import (
	"slices"

	"ai-editor-be/pkg/ai/cache"
	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/pipeline"
)

// Config bounds the window sent to the model
type Config struct {
	MaxParagraphs int
	MaxRunes      int
}

func DefaultConfig() Config {
	return Config{
		MaxParagraphs: 40,
		MaxRunes:      12000,
	}
}

// Builder implements pipeline.DocumentContextBuilder.
// Paragraph text is never clipped; edits must quote it exactly.
type Builder struct {
	config Config
}

var _ pipeline.DocumentContextBuilder = (*Builder)(nil)

func New(config Config) *Builder {
	d := DefaultConfig()
	if config.MaxParagraphs <= 0 {
		config.MaxParagraphs = d.MaxParagraphs
	}
	if config.MaxRunes <= 0 {
		config.MaxRunes = d.MaxRunes
	}
	return &Builder{config: config}
}

// Build returns the whole document when it fits, otherwise the focus paragraphs grown
// outwards one neighbour at a time. Without focus the window starts at the top.
func (b *Builder) Build(paragraphs []intent.Paragraph, focus []int) pipeline.DocumentContext {
	texts := make([]string, len(paragraphs))
	total := 0
	for i, p := range paragraphs {
		texts[i] = p.Text
		total += runeLen(p.Text)
	}

	doc := pipeline.DocumentContext{
		Total: len(paragraphs),
		Hash:  cache.HashDocument(texts),
	}
	if len(paragraphs) <= b.config.MaxParagraphs && total <= b.config.MaxRunes {
		doc.Paragraphs = slices.Clone(paragraphs)
		return doc
	}

	picked := make(map[int]bool)
	budget := b.config.MaxRunes
	take := func(i int) bool {
		if i < 0 || i >= len(paragraphs) || picked[i] {
			return true
		}
		if len(picked) >= b.config.MaxParagraphs {
			return false
		}
		n := runeLen(paragraphs[i].Text)
		// the first paragraph is always admitted
		if n > budget && len(picked) > 0 {
			return false
		}
		picked[i] = true
		budget -= n
		return true
	}

	seeds := make([]int, 0, len(focus))
	for _, id := range focus {
		if id >= 0 && id < len(paragraphs) {
			seeds = append(seeds, id)
		}
	}
	if len(seeds) == 0 {
		seeds = []int{0}
	}
	for _, i := range seeds {
		take(i)
	}

	for radius := 1; radius < len(paragraphs); radius++ {
		grew := false
		for _, i := range seeds {
			for _, j := range []int{i - radius, i + radius} {
				if j < 0 || j >= len(paragraphs) || picked[j] {
					continue
				}
				if take(j) {
					grew = true
				}
			}
		}
		if !grew && (budget <= 0 || len(picked) >= b.config.MaxParagraphs) {
			break
		}
	}

	ids := make([]int, 0, len(picked))
	for i := range picked {
		ids = append(ids, i)
	}
	slices.Sort(ids)
	for _, i := range ids {
		doc.Paragraphs = append(doc.Paragraphs, paragraphs[i])
	}
	doc.Truncated = len(doc.Paragraphs) < len(paragraphs)
	return doc
}

func runeLen(s string) int {
	return len([]rune(s))
}
