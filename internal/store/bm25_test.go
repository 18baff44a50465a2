package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25Index_SearchBeforeBuild(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	_, err := idx.Search("anything", 10)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
}

func TestBM25Index_EmptyQueryReturnsEmptyNotError(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	idx.BuildIndex([]Document{{ID: "a", Content: "hello world"}})
	results, err := idx.Search("  ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// Scenario from spec.md §8.1.
func TestBM25Index_OrderingScenario(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	idx.BuildIndex([]Document{
		{ID: "A", Content: "postgres is a relational database"},
		{ID: "B", Content: "mysql is a relational database"},
		{ID: "C", Content: "the weather is nice today"},
	})

	results, err := idx.Search("postgres database", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	require.Equal(t, "A", results[0].DocID)
	if len(results) > 1 && results[1].DocID == "B" {
		assert.Greater(t, results[0].Score, results[1].Score)
	}
	for _, r := range results {
		if r.DocID == "C" {
			assert.Equal(t, "C", results[len(results)-1].DocID)
		}
	}
}

func TestBM25Index_ScoresNonIncreasing(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	idx.BuildIndex([]Document{
		{ID: "1", Content: "go is a programming language"},
		{ID: "2", Content: "go go go programming programming"},
		{ID: "3", Content: "python is also a programming language"},
		{ID: "4", Content: "nothing relevant here"},
	})
	results, err := idx.Search("go programming", 10)
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestBM25Index_TopKRespected(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	docs := make([]Document, 0, 20)
	for i := 0; i < 20; i++ {
		docs = append(docs, Document{ID: string(rune('a' + i)), Content: "relevant relevant text"})
	}
	idx.BuildIndex(docs)
	results, err := idx.Search("relevant", 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 5)
}

func TestBM25Index_DocFrequencyFiltering(t *testing.T) {
	cfg := DefaultBM25Config()
	cfg.MinDocFreq = 2
	idx := NewBM25Index(cfg)
	idx.BuildIndex([]Document{
		{ID: "1", Content: "unique rareterm"},
		{ID: "2", Content: "common shared term"},
		{ID: "3", Content: "common shared term"},
	})
	results, err := idx.Search("rareterm", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "rareterm appears in only one doc and should be dropped by MinDocFreq=2")
}

func TestBM25Index_DeleteUpdatesPostingsAndStats(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	idx.BuildIndex([]Document{
		{ID: "1", Content: "alpha beta"},
		{ID: "2", Content: "alpha gamma"},
	})
	idx.Delete([]string{"1"})
	assert.Equal(t, []string{"2"}, idx.AllIDs())
	assert.Equal(t, 1, idx.Stats().DocumentCount)
}
