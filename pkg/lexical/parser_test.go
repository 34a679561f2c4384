package lexical

import (
	"testing"

	"ai-editor-be/pkg/ai/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `{"root":{"type":"root","version":1,"children":[
 {"type":"heading","tag":"h1","children":[{"type":"text","text":"Plan","format":1}]},
 {"type":"paragraph","children":[
   {"type":"text","text":"Visit "},
   {"type":"link","url":"https://example.com","children":[{"type":"text","text":"the site"}]},
   {"type":"linebreak"},
   {"type":"text","text":"today","format":2}]},
 {"type":"paragraph","children":[]},
 {"type":"list","listType":"bullet","children":[
   {"type":"listitem","children":[{"type":"text","text":"one"}]},
   {"type":"listitem","children":[{"type":"list","listType":"bullet","children":[
     {"type":"listitem","children":[{"type":"text","text":"nested"}]}]}]}]},
 {"type":"horizontalrule"},
 {"type":"table","children":[
   {"type":"tablerow","children":[
     {"type":"tablecell","children":[{"type":"paragraph","children":[{"type":"text","text":"a"}]}]},
     {"type":"tablecell","children":[{"type":"paragraph","children":[{"type":"text","text":"b"}]}]}]}]}
]}}`

func TestParse(t *testing.T) {
	got, err := NewParser().Parse([]byte(document))
	require.NoError(t, err)

	want := []intent.Paragraph{
		{ID: 0, Text: "Plan"},
		{ID: 1, Text: "Visit the site\ntoday"},
		{ID: 2, Text: ""},
		{ID: 3, Text: "one"},
		{ID: 4, Text: "nested"},
		{ID: 5, Text: "a | b"},
	}
	assert.Equal(t, want, got)
}

func TestParse_Errors(t *testing.T) {
	_, err := NewParser().Parse([]byte(`{"root":`))
	assert.Error(t, err)

	_, err = NewParser().Parse([]byte(`{"foo":{}}`))
	assert.ErrorIs(t, err, ErrNotLexical)
}

func TestParseContent(t *testing.T) {
	got := ParseContent(`{"root":{"type":"root","children":[{"type":"paragraph","children":[{"type":"text","text":"hi"}]}]}}`)
	assert.Equal(t, []intent.Paragraph{{ID: 0, Text: "hi"}}, got)

	got = ParseContent("First line.\r\n\r\n\n\nSecond one.\n")
	assert.Equal(t, []intent.Paragraph{{ID: 0, Text: "First line."}, {ID: 1, Text: "Second one."}}, got)

	assert.Empty(t, ParseContent("   "))
}
