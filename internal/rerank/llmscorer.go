package rerank

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/store"
)

// DefaultLLMConcurrency bounds the number of in-flight scoring calls in
// individual mode (spec.md §4.6).
const DefaultLLMConcurrency = 5

// rawFallbackScore is substituted (pre-normalization, on the 0-10 scale)
// whenever a model response can't be parsed into a number, keeping one bad
// response from sinking a whole rerank (spec.md §4.6's batch-parse fallback).
const rawFallbackScore = 5.0

// fallbackScore is rawFallbackScore normalized to [0,1], the value callers
// and tests actually see in RerankerResult.FinalScore.
const fallbackScore = rawFallbackScore / 10

var numberPattern = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+`)

// normalizeScore clamps a raw 0-10 model score and maps it to [0,1]
// (spec.md §4.6: "parsed as 0-10, clamped, divided by 10").
func normalizeScore(raw float64) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > 10 {
		raw = 10
	}
	return raw / 10
}

// LLMScorerReranker asks a chat model to score each candidate's relevance
// on a 0-10 scale, either one call per candidate (bounded concurrency) or a
// single batched call listing every candidate. Grounded on the teacher's
// internal/search/llmrank.go prompt-and-parse pattern.
type LLMScorerReranker struct {
	Model       providers.ChatModelProvider
	Concurrency int
	Batched     bool
}

func NewLLMScorerReranker(model providers.ChatModelProvider) *LLMScorerReranker {
	return &LLMScorerReranker{Model: model, Concurrency: DefaultLLMConcurrency}
}

func (r *LLMScorerReranker) Rerank(ctx context.Context, query string, candidates []store.RetrievalResult, opts Options) ([]RerankerResult, error) {
	scoreFn := r.scoreIndividually
	if r.Batched {
		scoreFn = r.scoreBatched
	}
	return ApplyTemplate(ctx, query, candidates, opts, scoreFn)
}

func (r *LLMScorerReranker) scoreIndividually(ctx context.Context, query string, cs []store.RetrievalResult) ([]float64, error) {
	scores := make([]float64, len(cs))
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultLLMConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range cs {
		i, c := i, c
		g.Go(func() error {
			resp, err := r.Model.Chat(gctx, []providers.ChatMessage{
				{Role: providers.RoleUser, Content: scorePrompt(query, c.Chunk.Content)},
			}, providers.ChatOptions{Temperature: 0})
			if err != nil {
				scores[i] = fallbackScore
				return nil // one failed call degrades to the fallback, not a hard error
			}
			scores[i] = parseScore(resp.Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *LLMScorerReranker) scoreBatched(ctx context.Context, query string, cs []store.RetrievalResult) ([]float64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nScore each document's relevance to the query from 0 to 10, one score per line, in order.\n\n", query)
	for i, c := range cs {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Chunk.Content)
	}

	resp, err := r.Model.Chat(ctx, []providers.ChatMessage{
		{Role: providers.RoleUser, Content: sb.String()},
	}, providers.ChatOptions{Temperature: 0})
	if err != nil {
		scores := make([]float64, len(cs))
		for i := range scores {
			scores[i] = fallbackScore
		}
		return scores, nil
	}

	lines := strings.Split(strings.TrimSpace(resp.Content), "\n")
	scores := make([]float64, len(cs))
	for i := range cs {
		if i < len(lines) {
			if m := numberPattern.FindString(lines[i]); m != "" {
				if v, err := strconv.ParseFloat(m, 64); err == nil {
					scores[i] = normalizeScore(v)
					continue
				}
			}
		}
		scores[i] = fallbackScore
	}
	return scores, nil
}

func scorePrompt(query, content string) string {
	return fmt.Sprintf("Query: %s\n\nDocument:\n%s\n\nOn a scale of 0 to 10, how relevant is this document to the query? Reply with only the number.", query, content)
}

func parseScore(text string) float64 {
	m := numberPattern.FindString(text)
	if m == "" {
		return fallbackScore
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return fallbackScore
	}
	return normalizeScore(v)
}
