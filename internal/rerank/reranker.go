// Package rerank reorders and re-scores retrieval candidates. Every
// implementation shares the same contract (dedup, score, sort, filter,
// assign ranks) and differs only in how it produces a relevance score per
// candidate — grounded on the teacher's internal/search/reranker.go Reranker
// interface plus its NoOpReranker as the shape for the shared template.
package rerank

import (
	"context"
	"sort"

	"github.com/draco28/ragcore/internal/store"
)

// RerankerResult is one reranked candidate (spec.md §3's RerankerResult).
type RerankerResult struct {
	ID            string
	Chunk         store.Chunk
	OriginalRank  int
	NewRank       int
	OriginalScore float64
	RerankerScore float64
	FinalScore    float64

	// RelevanceScore and DiversityPenalty are an optional breakdown of
	// RerankerScore (spec.md's "score breakdown ... for transparency").
	// Only rerankers that compute these as distinct terms (e.g. MMR)
	// populate them; others leave both at zero.
	RelevanceScore   float64
	DiversityPenalty float64
}

// Options bound the output of any Reranker.
type Options struct {
	TopK     int     // <=0 means unbounded
	MinScore float64 // results below this FinalScore are dropped
}

// Reranker takes upstream retrieval candidates and a query and returns them
// reordered by a (possibly very different) notion of relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []store.RetrievalResult, opts Options) ([]RerankerResult, error)
}

// ScoreFunc computes one relevance score per candidate, in the same order as
// its input. Implementations may call out to a cross-encoder, an LLM, or any
// other scorer; dedup/sort/rank assignment is handled by ApplyTemplate.
type ScoreFunc func(ctx context.Context, query string, candidates []store.RetrievalResult) ([]float64, error)

// ApplyTemplate is the common reranking skeleton every score-per-item
// reranker (cross-encoder, LLM scorer) shares: dedup by id keeping the
// higher-ranked occurrence, score, sort by score descending, assign
// before/after ranks, then apply MinScore/TopK.
func ApplyTemplate(ctx context.Context, query string, candidates []store.RetrievalResult, opts Options, score ScoreFunc) ([]RerankerResult, error) {
	deduped := dedupByID(candidates)

	scores, err := score(ctx, query, deduped)
	if err != nil {
		return nil, err
	}

	results := make([]RerankerResult, len(deduped))
	for i, c := range deduped {
		results[i] = RerankerResult{
			ID:            c.ID,
			Chunk:         c.Chunk,
			OriginalRank:  i + 1,
			OriginalScore: c.Score,
			RerankerScore: scores[i],
			FinalScore:    scores[i],
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].ID < results[j].ID
	})

	filtered := results[:0]
	for _, r := range results {
		if r.FinalScore < opts.MinScore {
			continue
		}
		filtered = append(filtered, r)
	}
	for i := range filtered {
		filtered[i].NewRank = i + 1
	}

	if opts.TopK > 0 && len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}
	return filtered, nil
}

// dedupByID keeps the first (i.e. highest-ranked, since input order reflects
// upstream relevance) occurrence of each id.
func dedupByID(candidates []store.RetrievalResult) []store.RetrievalResult {
	seen := make(map[string]bool, len(candidates))
	out := make([]store.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// NoOpReranker returns candidates unchanged aside from rank bookkeeping; it
// is the identity element used when reranking is disabled.
type NoOpReranker struct{}

func (NoOpReranker) Rerank(ctx context.Context, query string, candidates []store.RetrievalResult, opts Options) ([]RerankerResult, error) {
	return ApplyTemplate(ctx, query, candidates, opts, func(_ context.Context, _ string, cs []store.RetrievalResult) ([]float64, error) {
		scores := make([]float64, len(cs))
		for i, c := range cs {
			scores[i] = c.Score
		}
		return scores, nil
	})
}
