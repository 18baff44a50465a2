package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draco28/ragcore/internal/store"
)

func input(id, content string, relevance float64) Input {
	return Input{ID: id, Chunk: store.Chunk{ID: id, Content: content, DocumentID: "doc-" + id}, Relevance: relevance}
}

func fixedCounter(n int) TokenCounter {
	return func(string) int { return n }
}

func TestAssemble_DedupsKeepingHigherRankedOccurrence(t *testing.T) {
	inputs := []Input{input("a", "first", 0.9), input("b", "other", 0.5), input("a", "stale dup", 0.1)}
	ctx := Assemble(inputs, Options{TokenCounter: fixedCounter(1)})
	assert.Equal(t, 1, ctx.DeduplicatedCount)
	assert.Equal(t, 2, ctx.ChunkCount)
	require.Len(t, ctx.Sources, 2)
	assert.Contains(t, ctx.Content, "first")
	assert.NotContains(t, ctx.Content, "stale dup")
}

func TestAssemble_SourceIndicesAreUniqueAndContiguousFromOne(t *testing.T) {
	inputs := []Input{input("a", "x", 0.9), input("b", "y", 0.8), input("c", "z", 0.7)}
	ctx := Assemble(inputs, Options{TokenCounter: fixedCounter(1)})
	require.Len(t, ctx.Sources, 3)
	for i, s := range ctx.Sources {
		assert.Equal(t, i+1, s.Index)
	}
}

func TestAssemble_BudgetEnforcementSkipsNotStops(t *testing.T) {
	// "b" costs more than remaining budget after "a"; "c" is small enough to
	// still fit after skipping "b" — skip-not-stop semantics (spec.md §4.7).
	inputs := []Input{input("a", "a", 0.9), input("b", "b", 0.8), input("c", "c", 0.7)}
	counter := func(content string) int {
		if content == "b" {
			return 100
		}
		return 1
	}
	ctx := Assemble(inputs, Options{MaxTokens: 5, TokenCounter: counter})
	ids := make([]string, len(ctx.Sources))
	for i, s := range ctx.Sources {
		ids[i] = s.ChunkID
	}
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.Equal(t, 1, ctx.DroppedCount)
	assert.LessOrEqual(t, ctx.EstimatedTokens, 5)
}

func TestAssemble_RelevanceOrderingLeavesInputOrderUnchanged(t *testing.T) {
	inputs := []Input{input("a", "a", 0.9), input("b", "b", 0.5)}
	ctx := Assemble(inputs, Options{Ordering: OrderingRelevance, TokenCounter: fixedCounter(1)})
	assert.Equal(t, "a", ctx.Sources[0].ChunkID)
	assert.Equal(t, "b", ctx.Sources[1].ChunkID)
}

func TestAssemble_SandwichOrderingReordersBeforeBudgeting(t *testing.T) {
	inputs := []Input{
		input("r1", "r1", 0.9), input("r2", "r2", 0.8), input("r3", "r3", 0.7),
		input("r4", "r4", 0.6), input("r5", "r5", 0.5), input("r6", "r6", 0.4), input("r7", "r7", 0.3),
	}
	ctx := Assemble(inputs, Options{Ordering: OrderingSandwich, SandwichStartCount: 3, TokenCounter: fixedCounter(1)})
	ids := make([]string, len(ctx.Sources))
	for i, s := range ctx.Sources {
		ids[i] = s.ChunkID
	}
	assert.Equal(t, []string{"r1", "r2", "r3", "r7", "r6", "r5", "r4"}, ids)
}

func TestAssemble_EmptyInputProducesEmptyContext(t *testing.T) {
	ctx := Assemble(nil, Options{TokenCounter: fixedCounter(1)})
	assert.Equal(t, 0, ctx.ChunkCount)
	assert.Empty(t, ctx.Sources)
	assert.Equal(t, "", ctx.Content)
}

func TestFallbackTokenCounter_IncludesOverhead(t *testing.T) {
	n := FallbackTokenCounter("")
	assert.Equal(t, messageOverheadTokens, n)
}

func TestFromRetrievalResults_PreservesScore(t *testing.T) {
	results := []store.RetrievalResult{{ID: "a", Chunk: store.Chunk{ID: "a"}, Score: 0.42}}
	inputs := FromRetrievalResults(results)
	require.Len(t, inputs, 1)
	assert.Equal(t, 0.42, inputs[0].Relevance)
}
