package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draco28/ragcore/internal/store"
)

type fakeCrossEncoder struct {
	logits    map[string]float64
	available bool
}

func (f *fakeCrossEncoder) Score(ctx context.Context, pairs [][2]string) ([]float64, error) {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = f.logits[p[1]]
	}
	return out, nil
}

func (f *fakeCrossEncoder) Available() bool { return f.available }

func withContent(id, content string, score float64) store.RetrievalResult {
	return store.RetrievalResult{ID: id, Chunk: store.Chunk{ID: id, Content: content}, Score: score}
}

func TestCrossEncoderReranker_SquashesLogitsToUnitIntervalAndReorders(t *testing.T) {
	enc := &fakeCrossEncoder{available: true, logits: map[string]float64{"good": 4.0, "bad": -4.0}}
	candidates := []store.RetrievalResult{withContent("bad", "bad", 0.9), withContent("good", "good", 0.1)}

	rr := NewCrossEncoderReranker(enc)
	out, err := rr.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, r := range out {
		assert.GreaterOrEqual(t, r.FinalScore, 0.0)
		assert.LessOrEqual(t, r.FinalScore, 1.0)
	}
	assert.Equal(t, "good", out[0].ID, "cross-encoder score should override the original upstream rank")
}

func TestCrossEncoderReranker_UnavailableIsError(t *testing.T) {
	enc := &fakeCrossEncoder{available: false}
	rr := NewCrossEncoderReranker(enc)
	_, err := rr.Rerank(context.Background(), "q", nil, Options{})
	require.Error(t, err)
}
