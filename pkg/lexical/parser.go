// Package lexical flattens Lexical editor documents into the paragraph list
// the assistant works on.
package lexical

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-editor-be/pkg/ai/intent"
)

// ErrNotLexical is returned when the input has no root node
var ErrNotLexical = errors.New("not a lexical document")

// Parser turns Lexical JSON into paragraphs
type Parser struct{}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return &Parser{}
}

// Parse returns one paragraph per block in document order, ids starting at 0.
// Paragraph text is plain: formatting marks are dropped so character offsets
// line up with what the editor displays.
func (p *Parser) Parse(raw []byte) ([]intent.Paragraph, error) {
	var root LexicalRoot
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse lexical json: %w", err)
	}
	if root.Root.Type != "root" {
		return nil, ErrNotLexical
	}

	var blocks []string
	for _, child := range root.Root.Children {
		blocks = p.collect(child, blocks)
	}

	paragraphs := make([]intent.Paragraph, len(blocks))
	for i, text := range blocks {
		paragraphs[i] = intent.Paragraph{ID: i, Text: text}
	}
	return paragraphs, nil
}

// ParseContent parses content when it looks like Lexical JSON and otherwise
// splits plain text on blank lines
func ParseContent(content string) []intent.Paragraph {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, `{"root":`) {
		if paragraphs, err := NewParser().Parse([]byte(trimmed)); err == nil {
			return paragraphs
		}
	}
	return SplitPlain(content)
}

// SplitPlain splits text on blank lines, skipping empty blocks
func SplitPlain(content string) []intent.Paragraph {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var paragraphs []intent.Paragraph
	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		paragraphs = append(paragraphs, intent.Paragraph{ID: len(paragraphs), Text: block})
	}
	return paragraphs
}

func (p *Parser) collect(node Node, blocks []string) []string {
	switch node.Type {
	case TypeList:
		for _, item := range node.Children {
			if item.Type != TypeListItem {
				continue
			}
			var inline []Node
			var nested []Node
			for _, c := range item.Children {
				if c.Type == TypeList {
					nested = append(nested, c)
				} else {
					inline = append(inline, c)
				}
			}
			// a list item that only wraps a nested list has no text of its own
			if len(inline) > 0 {
				blocks = append(blocks, p.inline(inline))
			}
			for _, n := range nested {
				blocks = p.collect(n, blocks)
			}
		}
		return blocks

	case TypeTable:
		for _, row := range node.Children {
			if row.Type != TypeTableRow {
				continue
			}
			cells := make([]string, 0, len(row.Children))
			for _, cell := range row.Children {
				cells = append(cells, strings.ReplaceAll(p.inline(cell.Children), "\n", " "))
			}
			blocks = append(blocks, strings.Join(cells, " | "))
		}
		return blocks

	case TypeRule:
		return blocks

	default:
		return append(blocks, p.inline(node.Children))
	}
}

func (p *Parser) inline(nodes []Node) string {
	var sb strings.Builder
	p.writeInline(nodes, &sb)
	return sb.String()
}

func (p *Parser) writeInline(nodes []Node, sb *strings.Builder) {
	for _, n := range nodes {
		switch n.Type {
		case TypeLineBreak:
			sb.WriteString("\n")
		case TypeTab:
			sb.WriteString("\t")
		default:
			sb.WriteString(n.Text)
			p.writeInline(n.Children, sb)
		}
	}
}
