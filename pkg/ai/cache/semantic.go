package cache

import (
	"context"
	"math"

	"github.com/pgvector/pgvector-go"
)

// SimilarityThreshold is the minimum cosine similarity for a semantic hit
const SimilarityThreshold = 0.92

// SemanticMatcher finds a cached instruction similar to the current one for the same document.
// It returns the instruction hash of the match.
type SemanticMatcher interface {
	Match(ctx context.Context, documentHash string, embedding pgvector.Vector) (string, bool)
}

// DisabledSemanticMatcher never matches. Embeddings are not computed yet, so
// only exact L1/L2 keys can hit.
type DisabledSemanticMatcher struct{}

func (DisabledSemanticMatcher) Match(context.Context, string, pgvector.Vector) (string, bool) {
	return "", false
}

// CosineSimilarity returns the cosine of the angle between two embeddings.
// Mismatched dimensions or zero vectors yield 0.
func CosineSimilarity(a, b pgvector.Vector) float64 {
	av, bv := a.Slice(), b.Slice()
	if len(av) == 0 || len(av) != len(bv) {
		return 0
	}

	var dot, na, nb float64
	for i := range av {
		x, y := float64(av[i]), float64(bv[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsSimilar applies SimilarityThreshold
func IsSimilar(a, b pgvector.Vector) bool {
	return CosineSimilarity(a, b) >= SimilarityThreshold
}
