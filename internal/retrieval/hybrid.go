package retrieval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/draco28/ragcore/internal/resilience"
)

// HybridResult is one fused-and-scored document plus its confidence.
type HybridResult struct {
	FusedResult
	Confidence Confidence
}

// HybridRetriever runs every enabled ranker concurrently, fuses by RRF, and
// attaches a confidence score per result (spec.md §4.5). Grounded on the
// teacher's internal/search/engine.go's errgroup.WithContext fan-out
// pattern, generalized from a fixed dense+sparse pair to an arbitrary
// ranker list (a third "graph retriever" is explicitly optional — see
// DESIGN.md's Open Question decisions).
type HybridRetriever struct {
	Rankers []Retriever
	Fusion  *RRFFusion
}

// NewHybridRetriever builds a retriever over the given rankers with the
// default RRF constant.
func NewHybridRetriever(rankers ...Retriever) *HybridRetriever {
	return &HybridRetriever{Rankers: rankers, Fusion: NewRRFFusion()}
}

// Retrieve runs every ranker concurrently. A single ranker's failure does
// not fail the whole call — its contribution is simply absent, mirroring
// the teacher's "graceful degradation" comment in parallelSearch.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]HybridResult, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	outputs := make([]RankerOutput, len(h.Rankers))
	g, gctx := errgroup.WithContext(ctx)
	for i, ranker := range h.Rankers {
		i, ranker := i, ranker
		g.Go(func() error {
			items, err := ranker.Retrieve(gctx, query, topK)
			if err != nil {
				outputs[i] = RankerOutput{Name: ranker.Name()}
				return nil // degrade gracefully, don't fail the whole fan-out
			}
			ranked := make([]RankedItem, len(items))
			for j, it := range items {
				ranked[j] = RankedItem{ID: it.ID, Chunk: it.Chunk, Score: it.Score}
			}
			outputs[i] = RankerOutput{Name: ranker.Name(), Items: ranked}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, resilience.New(resilience.ErrCodeRetrievalFailed, "hybrid retrieval failed", err)
	}

	fused := h.Fusion.Fuse(outputs)

	listLens := make(map[string]int, len(outputs))
	for _, o := range outputs {
		listLens[o.Name] = len(o.Items)
	}

	results := make([]HybridResult, len(fused))
	for i, f := range fused {
		results[i] = HybridResult{FusedResult: f, Confidence: ComputeConfidence(f, listLens, len(outputs))}
	}
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return resilience.New(resilience.ErrCodeAborted, "operation aborted", ctx.Err())
	default:
		return nil
	}
}
