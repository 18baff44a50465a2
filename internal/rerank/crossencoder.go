package rerank

import (
	"context"
	"math"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/resilience"
	"github.com/draco28/ragcore/internal/store"
)

// CrossEncoderReranker scores (query, chunk) pairs directly through a
// cross-encoder model, rather than normalizing upstream retrieval scores.
// Unlike BM25/dense scores, cross-encoder logits are not min-max normalized
// (spec.md §4.6) — they are squashed through a sigmoid so FinalScore always
// lands in (0, 1) without distorting relative ordering.
type CrossEncoderReranker struct {
	Encoder providers.CrossEncoder
}

func NewCrossEncoderReranker(encoder providers.CrossEncoder) *CrossEncoderReranker {
	return &CrossEncoderReranker{Encoder: encoder}
}

func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []store.RetrievalResult, opts Options) ([]RerankerResult, error) {
	if !r.Encoder.Available() {
		return nil, resilience.New(resilience.ErrCodeProviderError, "cross-encoder unavailable", nil)
	}
	return ApplyTemplate(ctx, query, candidates, opts, func(ctx context.Context, query string, cs []store.RetrievalResult) ([]float64, error) {
		pairs := make([][2]string, len(cs))
		for i, c := range cs {
			pairs[i] = [2]string{query, c.Chunk.Content}
		}
		logits, err := r.Encoder.Score(ctx, pairs)
		if err != nil {
			return nil, resilience.Wrap(resilience.ErrCodeProviderError, err)
		}
		scores := make([]float64, len(logits))
		for i, l := range logits {
			scores[i] = sigmoid(l)
		}
		return scores, nil
	})
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
