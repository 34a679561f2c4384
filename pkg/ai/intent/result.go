package intent

// Edit is a proposed text replacement inside one paragraph.
// Start and End are byte offsets claimed during output validation.
type Edit struct {
	ParagraphID int    `json:"paragraph_id"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Reason      string `json:"reason,omitempty"`
}

// Highlight marks a span the user asked to locate
type Highlight struct {
	ParagraphID int    `json:"paragraph_id"`
	Text        string `json:"text,omitempty"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Reason      string `json:"reason,omitempty"`
}

// ModeResult is the executor output, tagged by the mode that produced it.
// Informational results carry Reply, locate results Highlights, editing results Edits.
type ModeResult struct {
	Mode       Mode        `json:"mode"`
	Reply      string      `json:"reply,omitempty"`
	Highlights []Highlight `json:"highlights,omitempty"`
	Edits      []Edit      `json:"edits,omitempty"`
}

// Clone returns a deep copy
func (r ModeResult) Clone() ModeResult {
	out := r
	if r.Highlights != nil {
		out.Highlights = append([]Highlight(nil), r.Highlights...)
	}
	if r.Edits != nil {
		out.Edits = append([]Edit(nil), r.Edits...)
	}
	return out
}

// Proposal is a preview generated for a confirmation request
type Proposal struct {
	Result       ModeResult `json:"result"`
	DocumentHash string     `json:"document_hash"`
}

// Paragraph is one addressable unit of the document snapshot
type Paragraph struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}
