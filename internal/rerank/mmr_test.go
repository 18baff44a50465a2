package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draco28/ragcore/internal/store"
)

func withEmbedding(id string, score float64, vec []float32) store.RetrievalResult {
	return store.RetrievalResult{ID: id, Chunk: store.Chunk{ID: id, Embedding: vec}, Score: score}
}

func TestCosineSimilarity_IdenticalVectorsAreOne(t *testing.T) {
	v := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_OrthogonalVectorsAreZero(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestMMRReranker_PrefersDiverseOverRedundantSecondPick(t *testing.T) {
	// a is most relevant. b is nearly identical to a (redundant). c is less
	// relevant than b but orthogonal to a (diverse). MMR should pick c over
	// b for the second slot.
	candidates := []store.RetrievalResult{
		withEmbedding("a", 0.95, []float32{1, 0}),
		withEmbedding("b", 0.90, []float32{1, 0}),
		withEmbedding("c", 0.60, []float32{0, 1}),
	}
	r := NewMMRReranker(nil)
	out, err := r.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID, "diverse-but-less-relevant result should beat a near-duplicate of the top pick")
}

func TestMMRReranker_PopulatesScoreBreakdown(t *testing.T) {
	// a is the first (no-competition) pick, so its diversity penalty is 0.
	// b duplicates a's embedding, so whichever of b/c is picked next inherits
	// a's similarity as its diversity penalty.
	candidates := []store.RetrievalResult{
		withEmbedding("a", 0.95, []float32{1, 0}),
		withEmbedding("b", 0.90, []float32{1, 0}),
		withEmbedding("c", 0.60, []float32{0, 1}),
	}
	r := NewMMRReranker(nil)
	out, err := r.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 3)

	byID := make(map[string]RerankerResult, len(out))
	for _, res := range out {
		byID[res.ID] = res
		assert.InDelta(t, res.RerankerScore, res.FinalScore, 1e-9)
		assert.InDelta(t, r.Lambda*res.RelevanceScore-(1-r.Lambda)*res.DiversityPenalty, res.FinalScore, 1e-9)
	}
	assert.InDelta(t, 0.0, byID["a"].DiversityPenalty, 1e-9)
	assert.InDelta(t, 0.95, byID["a"].RelevanceScore, 1e-9, "no embedder configured: relevance falls back to the candidate's own retrieval score")
}

func TestMMRReranker_SingleCandidate(t *testing.T) {
	candidates := []store.RetrievalResult{withEmbedding("a", 0.5, []float32{1, 0})}
	r := NewMMRReranker(nil)
	out, err := r.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, 1, out[0].NewRank)
}

func TestMMRReranker_TopKTruncates(t *testing.T) {
	candidates := []store.RetrievalResult{
		withEmbedding("a", 0.9, []float32{1, 0}),
		withEmbedding("b", 0.8, []float32{0, 1}),
		withEmbedding("c", 0.1, []float32{1, 1}),
	}
	r := NewMMRReranker(nil)
	out, err := r.Rerank(context.Background(), "q", candidates, Options{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
