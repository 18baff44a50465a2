// Package retrieval provides the dense/sparse retriever adapters, the
// hybrid retriever's concurrent ranker fan-out, Reciprocal Rank Fusion, and
// confidence scoring (spec.md §4.4–§4.5). Grounded directly on the
// teacher's internal/search/fusion.go, generalized from a fixed
// BM25+vector pair to an arbitrary named-ranker list.
package retrieval

import (
	"sort"

	"github.com/draco28/ragcore/internal/store"
)

// DefaultRRFConstant is spec.md §4.5's default k.
const DefaultRRFConstant = 60

// RankedItem is one entry in a single ranker's output, in rank order.
type RankedItem struct {
	ID    string
	Chunk store.Chunk
	Score float64
}

// RankerOutput is one named ranker's ordered result list.
type RankerOutput struct {
	Name  string
	Items []RankedItem
}

// Contribution records one ranker's participation in a fused result. Rank
// and Score are nil iff that ranker did not return the document.
type Contribution struct {
	Name         string
	Rank         *int
	Score        *float64
	Contribution float64
}

// FusedResult is one document after RRF fusion across all rankers.
type FusedResult struct {
	ID            string
	Chunk         store.Chunk
	RRFScore      float64
	Contributions []Contribution
}

// RRFFusion fuses ranker outputs by Reciprocal Rank Fusion.
type RRFFusion struct {
	K int
}

// NewRRFFusion builds a fuser with the default k=60.
func NewRRFFusion() *RRFFusion { return &RRFFusion{K: DefaultRRFConstant} }

// NewRRFFusionWithK builds a fuser with a caller-chosen k.
func NewRRFFusionWithK(k int) *RRFFusion { return &RRFFusion{K: k} }

// Fuse combines rankerOutputs into RRF-fused, deterministically sorted
// results: score_fused(d) = Σ_ranker 1/(k+rank_ranker(d)).
func (f *RRFFusion) Fuse(rankerOutputs []RankerOutput) []FusedResult {
	k := f.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	type accum struct {
		chunk    store.Chunk
		rrf      float64
		byRanker map[string]Contribution
	}
	byID := make(map[string]*accum)
	order := make([]string, 0)

	for _, ro := range rankerOutputs {
		for idx, item := range ro.Items {
			rank := idx + 1

			a, ok := byID[item.ID]
			if !ok {
				a = &accum{chunk: item.Chunk, byRanker: make(map[string]Contribution)}
				byID[item.ID] = a
				order = append(order, item.ID)
			}
			contribution := 1.0 / float64(k+rank)
			a.rrf += contribution

			r, s := rank, item.Score
			a.byRanker[ro.Name] = Contribution{Name: ro.Name, Rank: &r, Score: &s, Contribution: contribution}
		}
	}

	results := make([]FusedResult, 0, len(order))
	for _, id := range order {
		a := byID[id]
		contributions := make([]Contribution, 0, len(rankerOutputs))
		for _, ro := range rankerOutputs {
			if c, ok := a.byRanker[ro.Name]; ok {
				contributions = append(contributions, c)
			} else {
				contributions = append(contributions, Contribution{Name: ro.Name})
			}
		}
		results = append(results, FusedResult{
			ID:            id,
			Chunk:         a.chunk,
			RRFScore:      a.rrf,
			Contributions: contributions,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return compareFused(results[i], results[j], rankerOutputs)
	})

	return results
}

// compareFused is the deterministic tie-break: RRFScore desc, then number of
// rankers that returned the document desc, then ID asc.
func compareFused(a, b FusedResult, _ []RankerOutput) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	ac, bc := presentCount(a), presentCount(b)
	if ac != bc {
		return ac > bc
	}
	return a.ID < b.ID
}

func presentCount(r FusedResult) int {
	n := 0
	for _, c := range r.Contributions {
		if c.Rank != nil {
			n++
		}
	}
	return n
}

// Normalize scales RRF scores to [0,1] by dividing by the maximum, so they
// can be compared against reranker scores from a different scale.
func Normalize(results []FusedResult) []FusedResult {
	if len(results) == 0 {
		return results
	}
	max := results[0].RRFScore
	for _, r := range results {
		if r.RRFScore > max {
			max = r.RRFScore
		}
	}
	if max <= 0 {
		return results
	}
	out := make([]FusedResult, len(results))
	for i, r := range results {
		r.RRFScore = r.RRFScore / max
		out[i] = r
	}
	return out
}
