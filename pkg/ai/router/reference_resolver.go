package router

// ResolvedReference is a parsed reference mapped onto a paragraph id
type ResolvedReference struct {
	ParagraphID int    `json:"paragraph_id"`
	Found       bool   `json:"resolved"`
	Error       string `json:"error,omitempty"`
	Reference   ParsedReference
}

// ResolveReferences maps 1-based positions onto 0-based paragraph ids of a document
// with paragraphCount paragraphs. Duplicates are skipped; results keep input order.
func ResolveReferences(refs []ParsedReference, paragraphCount int) []ResolvedReference {
	if len(refs) == 0 {
		return []ResolvedReference{}
	}

	resolved := make([]ResolvedReference, 0, len(refs))
	seen := make(map[int]bool)

	for _, ref := range refs {
		result := ResolvedReference{Reference: ref, ParagraphID: -1}

		id := ref.Position - 1
		if ref.Position == LastParagraph {
			id = paragraphCount - 1
		}

		switch {
		case paragraphCount == 0:
			result.Error = "document has no paragraphs"
		case id < 0 || id >= paragraphCount:
			result.Error = "paragraph out of range"
		default:
			if seen[id] {
				continue
			}
			seen[id] = true
			result.ParagraphID = id
			result.Found = true
		}
		resolved = append(resolved, result)
	}
	return resolved
}

// ReferencedIDs returns the ids of the references that resolved
func ReferencedIDs(resolved []ResolvedReference) []int {
	ids := make([]int, 0, len(resolved))
	for _, r := range resolved {
		if r.Found {
			ids = append(ids, r.ParagraphID)
		}
	}
	return ids
}
