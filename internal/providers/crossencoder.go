package providers

import "context"

// CrossEncoder scores (query, document) pairs for the cross-encoder
// reranker (spec.md §6). Score range need not be bounded — the reranker
// applies sigmoid squashing.
type CrossEncoder interface {
	Score(ctx context.Context, pairs [][2]string) ([]float64, error)
	Available() bool
}
