package lexical

// LexicalRoot represents the top-level structure
type LexicalRoot struct {
	Root Node `json:"root"`
}

// Node represents any node in the Lexical tree
type Node struct {
	Type     string `json:"type"`
	Version  int    `json:"version"`
	Children []Node `json:"children,omitempty"`

	// Text specific
	Text   string      `json:"text,omitempty"`
	Format interface{} `json:"format,omitempty"` // int bitmask on text, alignment string on blocks

	// Heading specific
	Tag string `json:"tag,omitempty"`

	// List specific
	ListType string `json:"listType,omitempty"` // check, bullet, number

	// ListItem specific
	Checked bool `json:"checked,omitempty"`
}

// Block node types; each one becomes a paragraph
const (
	TypeParagraph = "paragraph"
	TypeHeading   = "heading"
	TypeQuote     = "quote"
	TypeCode      = "code"
	TypeList      = "list"
	TypeListItem  = "listitem"
	TypeTable     = "table"
	TypeTableRow  = "tablerow"
	TypeLineBreak = "linebreak"
	TypeTab       = "tab"
	TypeRule      = "horizontalrule"
)
