package rerank

import (
	"context"
	"math"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/store"
)

// SimilarityFunc returns a [0,1]-ish similarity between two embeddings;
// higher means more similar.
type SimilarityFunc func(a, b []float32) float64

// CosineSimilarity assumes neither vector is the zero vector.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// DefaultLambda balances relevance against diversity (spec.md §4.6).
const DefaultLambda = 0.5

// MMRReranker greedily selects the result that maximizes
// λ·sim(query,d) − (1−λ)·max similarity to already-selected results,
// trading off relevance against diversity (Maximal Marginal Relevance).
// Grounded on the reranker/mmr package's greedy-selection loop: relevance is
// cosine similarity against the query embedding when one is available,
// falling back to the candidate's upstream retrieval score otherwise.
type MMRReranker struct {
	Embedder   providers.EmbeddingProvider // used only when a candidate's Chunk.Embedding is empty
	Lambda     float64
	Similarity SimilarityFunc
}

func NewMMRReranker(embedder providers.EmbeddingProvider) *MMRReranker {
	return &MMRReranker{Embedder: embedder, Lambda: DefaultLambda, Similarity: CosineSimilarity}
}

func (r *MMRReranker) Rerank(ctx context.Context, query string, candidates []store.RetrievalResult, opts Options) ([]RerankerResult, error) {
	deduped := dedupByID(candidates)
	if len(deduped) == 0 {
		return nil, nil
	}

	lambda := r.Lambda
	if lambda == 0 {
		lambda = DefaultLambda
	}
	sim := r.Similarity
	if sim == nil {
		sim = CosineSimilarity
	}

	embeddings, err := r.resolveEmbeddings(ctx, deduped)
	if err != nil {
		return nil, err
	}
	queryVec, err := r.resolveQueryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	n := len(deduped)
	relevance := make([]float64, n)
	for i := range deduped {
		if len(queryVec) > 0 && len(embeddings[i]) == len(queryVec) {
			relevance[i] = sim(queryVec, embeddings[i])
		} else {
			relevance[i] = deduped[i].Score
		}
	}

	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}
	selected := make([]int, 0, n)
	mmrScore := make([]float64, n)
	maxSimAtSelection := make([]float64, n)

	for len(remaining) > 0 {
		bestPos, bestIdx, bestScore, bestMaxSim := -1, -1, math.Inf(-1), 0.0
		for pos, idx := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				if v := sim(embeddings[idx], embeddings[s]); v > maxSim {
					maxSim = v
				}
			}
			score := lambda*relevance[idx] - (1-lambda)*maxSim
			if score > bestScore {
				bestScore, bestIdx, bestPos, bestMaxSim = score, idx, pos, maxSim
			}
		}
		mmrScore[bestIdx] = bestScore
		maxSimAtSelection[bestIdx] = bestMaxSim
		selected = append(selected, bestIdx)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	results := make([]RerankerResult, n)
	for rank, idx := range selected {
		c := deduped[idx]
		results[rank] = RerankerResult{
			ID:               c.ID,
			Chunk:            c.Chunk,
			OriginalRank:     idx + 1,
			NewRank:          rank + 1,
			OriginalScore:    c.Score,
			RerankerScore:    mmrScore[idx],
			FinalScore:       mmrScore[idx],
			RelevanceScore:   relevance[idx],
			DiversityPenalty: maxSimAtSelection[idx],
		}
	}

	filtered := results[:0]
	for _, res := range results {
		if res.FinalScore < opts.MinScore {
			continue
		}
		filtered = append(filtered, res)
	}
	if opts.TopK > 0 && len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}
	return filtered, nil
}

// resolveEmbeddings returns one embedding per candidate, computing it via
// Embedder when the chunk doesn't already carry one.
func (r *MMRReranker) resolveEmbeddings(ctx context.Context, candidates []store.RetrievalResult) ([][]float32, error) {
	out := make([][]float32, len(candidates))
	var missIdx []int
	var missText []string
	for i, c := range candidates {
		if len(c.Chunk.Embedding) > 0 {
			out[i] = c.Chunk.Embedding
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, c.Chunk.Content)
	}
	if len(missIdx) == 0 {
		return out, nil
	}
	embedded, err := r.Embedder.EmbedBatch(ctx, missText)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = embedded[j].Vector
	}
	return out, nil
}

// resolveQueryEmbedding embeds the query when an embedder is configured.
// Returns nil (not an error) if no embedder is available, signaling callers
// to fall back to each candidate's upstream retrieval score.
func (r *MMRReranker) resolveQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if r.Embedder == nil {
		return nil, nil
	}
	emb, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return emb.Vector, nil
}
