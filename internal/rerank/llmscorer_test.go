package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/store"
)

type fakeChatModel struct {
	responseFor func(content string) (string, error)
	batched     string
	batchErr    error
}

func (f *fakeChatModel) Chat(ctx context.Context, messages []providers.ChatMessage, opts providers.ChatOptions) (providers.ChatResponse, error) {
	if f.responseFor != nil {
		text, err := f.responseFor(messages[0].Content)
		if err != nil {
			return providers.ChatResponse{}, err
		}
		return providers.ChatResponse{Content: text}, nil
	}
	if f.batchErr != nil {
		return providers.ChatResponse{}, f.batchErr
	}
	return providers.ChatResponse{Content: f.batched}, nil
}

func (f *fakeChatModel) StreamChat(ctx context.Context, messages []providers.ChatMessage, opts providers.ChatOptions, onChunk func(providers.StreamChunk)) error {
	return errors.New("not implemented")
}
func (f *fakeChatModel) Available() bool                             { return true }
func (f *fakeChatModel) CountTokens(messages []providers.ChatMessage) int { return 0 }

func TestLLMScorerReranker_IndividualModeParsesNumericScores(t *testing.T) {
	model := &fakeChatModel{responseFor: func(content string) (string, error) {
		if strings.Contains(content, "great document") {
			return "9", nil
		}
		return "1", nil
	}}
	candidates := []store.RetrievalResult{
		withContent("low", "irrelevant filler", 0.5),
		withContent("high", "great document", 0.5),
	}
	r := NewLLMScorerReranker(model)
	out, err := r.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].ID)
}

func TestLLMScorerReranker_IndividualModeFailureFallsBackToDefaultScore(t *testing.T) {
	model := &fakeChatModel{responseFor: func(content string) (string, error) {
		return "", errors.New("provider down")
	}}
	candidates := []store.RetrievalResult{withContent("a", "a", 0.5), withContent("b", "b", 0.5)}
	r := NewLLMScorerReranker(model)
	out, err := r.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, res := range out {
		assert.Equal(t, fallbackScore, res.FinalScore)
	}
}

func TestLLMScorerReranker_BatchedModeParsesOneScorePerLine(t *testing.T) {
	model := &fakeChatModel{batched: "8\n3\n"}
	candidates := []store.RetrievalResult{withContent("a", "a", 0.5), withContent("b", "b", 0.5)}
	r := &LLMScorerReranker{Model: model, Batched: true}
	out, err := r.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
}

func TestLLMScorerReranker_BatchedModeMissingLinesUseFallback(t *testing.T) {
	model := &fakeChatModel{batched: "8\n"}
	candidates := []store.RetrievalResult{withContent("a", "a", 0.5), withContent("b", "b", 0.5)}
	r := &LLMScorerReranker{Model: model, Batched: true}
	out, err := r.Rerank(context.Background(), "q", candidates, Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	var bScore float64
	for _, res := range out {
		if res.ID == "b" {
			bScore = res.FinalScore
		}
	}
	assert.Equal(t, fallbackScore, bScore)
}
