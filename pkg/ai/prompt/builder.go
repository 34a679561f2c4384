// Package prompt renders the tagged prompt sections shared by the classifier and the executors.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"ai-editor-be/pkg/ai/intent"
	"ai-editor-be/pkg/ai/session"
	"ai-editor-be/pkg/llm"
)

// languageNames is used in instructions to the model
var languageNames = map[string]string{
	"es": "Spanish",
	"en": "English",
	"id": "Indonesian",
}

// LanguageName returns the English name of a supported language code
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return "English"
}

// Builder accumulates tagged sections
type Builder struct {
	sb strings.Builder
}

// Section writes <tag>body</tag>; empty bodies are skipped
func (b *Builder) Section(tag, body string) *Builder {
	body = strings.TrimSpace(body)
	if body == "" {
		return b
	}
	b.sb.WriteString("<" + tag + ">\n")
	b.sb.WriteString(body)
	b.sb.WriteString("\n</" + tag + ">\n\n")
	return b
}

// Document writes paragraphs with their ids. Truncated windows say so.
func (b *Builder) Document(paragraphs []intent.Paragraph, total int, truncated bool) *Builder {
	var doc strings.Builder
	if truncated {
		fmt.Fprintf(&doc, "(showing %d of %d paragraphs)\n", len(paragraphs), total)
	}
	for _, p := range paragraphs {
		fmt.Fprintf(&doc, "[%d] %s\n", p.ID, p.Text)
	}
	if len(paragraphs) == 0 {
		doc.WriteString("(empty document)")
	}
	return b.Section("document", doc.String())
}

// IDs writes a labelled id list
func (b *Builder) IDs(tag string, ids []int) *Builder {
	if len(ids) == 0 {
		return b
	}
	return b.Section(tag, JoinIDs(ids))
}

// History writes the last turns as "role: content" lines
func (b *Builder) History(turns []session.Turn) *Builder {
	var h strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&h, "%s: %s\n", t.Role, t.Content)
	}
	return b.Section("conversation_history", h.String())
}

func (b *Builder) Line(s string) *Builder {
	b.sb.WriteString(s)
	b.sb.WriteString("\n")
	return b
}

func (b *Builder) String() string {
	return strings.TrimSpace(b.sb.String())
}

// JoinIDs renders ids as "1, 2, 3"
func JoinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

// Messages converts session turns into chat messages
func Messages(turns []session.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	return out
}
