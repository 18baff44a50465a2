// Package assemble turns a ranked list of chunks into a single prompt-ready
// string with a token budget and citation indices (spec.md §4.7). No direct
// teacher equivalent exists (internal/search has no context-assembly
// stage); built in the same small, pure-function package style as the
// rest of the pipeline, reusing internal/rerank's position-bias transforms
// for the ordering step.
package assemble

import (
	"fmt"
	"strings"

	"github.com/draco28/ragcore/internal/rerank"
	"github.com/draco28/ragcore/internal/store"
)

// Ordering selects how chunks are arranged before the token-budget walk.
type Ordering string

const (
	OrderingRelevance      Ordering = "relevance"
	OrderingSandwich       Ordering = "sandwich"
	OrderingReverseSandwich Ordering = "reverse-sandwich"
	OrderingInterleave     Ordering = "interleave"
)

// DefaultSandwichStartCount is how many top items stay at the head under
// OrderingSandwich when Options.SandwichStartCount is left at zero.
const DefaultSandwichStartCount = 3

// Input is one ranked candidate handed to the assembler — either a
// RerankerResult or a bare RetrievalResult when reranking was skipped.
type Input struct {
	ID        string
	Chunk     store.Chunk
	Relevance float64
}

// Source is one emitted citation entry (spec.md §3's AssembledContext.sources).
type Source struct {
	Index      int
	ChunkID    string
	DocumentID string
	Relevance  float64
}

// AssembledContext is the assembler's output (spec.md §3).
type AssembledContext struct {
	Content           string
	EstimatedTokens   int
	ChunkCount        int
	DeduplicatedCount int
	DroppedCount      int
	Sources           []Source
}

// Options configures a single Assemble call.
type Options struct {
	Ordering            Ordering
	SandwichStartCount  int
	MaxTokens           int // <=0 means unbounded
	TokenCounter        TokenCounter
}

// Assemble runs dedup -> order -> budget walk -> format, in that order
// (spec.md §4.7, steps 1-5).
func Assemble(inputs []Input, opts Options) AssembledContext {
	counter := opts.TokenCounter
	if counter == nil {
		counter = FallbackTokenCounter
	}

	deduped, dupCount := dedupByID(inputs)
	ordered := order(deduped, opts)

	var sb strings.Builder
	sources := make([]Source, 0, len(ordered))
	total := 0
	dropped := 0
	index := 1
	for _, in := range ordered {
		cost := counter(in.Chunk.Content)
		if opts.MaxTokens > 0 && total+cost > opts.MaxTokens {
			dropped++
			continue // skip, don't stop: a later, smaller chunk may still fit
		}
		fmt.Fprintf(&sb, "[%d] %s\n\n", index, in.Chunk.Content)
		sources = append(sources, Source{
			Index:      index,
			ChunkID:    in.ID,
			DocumentID: in.Chunk.DocumentID,
			Relevance:  in.Relevance,
		})
		total += cost
		index++
	}

	return AssembledContext{
		Content:           strings.TrimSuffix(sb.String(), "\n\n"),
		EstimatedTokens:   total,
		ChunkCount:        len(sources),
		DeduplicatedCount: dupCount,
		DroppedCount:      dropped,
		Sources:           sources,
	}
}

// dedupByID keeps the first (higher-ranked) occurrence of each chunk id and
// reports how many duplicates were dropped.
func dedupByID(inputs []Input) ([]Input, int) {
	seen := make(map[string]bool, len(inputs))
	out := make([]Input, 0, len(inputs))
	dupCount := 0
	for _, in := range inputs {
		if seen[in.ID] {
			dupCount++
			continue
		}
		seen[in.ID] = true
		out = append(out, in)
	}
	return out, dupCount
}

func order(inputs []Input, opts Options) []Input {
	switch opts.Ordering {
	case OrderingSandwich:
		start := opts.SandwichStartCount
		if start <= 0 {
			start = DefaultSandwichStartCount
		}
		return rerank.SandwichOrder(inputs, start)
	case OrderingReverseSandwich:
		return rerank.ReverseSandwichOrder(inputs)
	case OrderingInterleave:
		return rerank.InterleaveOrder(inputs)
	default:
		return inputs
	}
}

// FromRetrievalResults adapts raw (unreranked) retrieval output into
// assembler Input, preserving its relevance score.
func FromRetrievalResults(results []store.RetrievalResult) []Input {
	out := make([]Input, len(results))
	for i, r := range results {
		out[i] = Input{ID: r.ID, Chunk: r.Chunk, Relevance: r.Score}
	}
	return out
}

// FromRerankerResults adapts reranked output into assembler Input,
// preserving reranker order and final score.
func FromRerankerResults(results []rerank.RerankerResult) []Input {
	out := make([]Input, len(results))
	for i, r := range results {
		out[i] = Input{ID: r.ID, Chunk: r.Chunk, Relevance: r.FinalScore}
	}
	return out
}
