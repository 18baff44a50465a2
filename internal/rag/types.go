// Package rag wires retrieval, reranking, and context assembly into a
// single orchestrated pipeline with caching (spec.md §4.8), grounded on the
// teacher's internal/search/engine.go Engine: functional-option
// configuration, nil-dependency validation in the constructor, parallel
// fan-out with graceful degradation, and per-query metrics/timings.
package rag

import (
	"context"
	"time"

	"github.com/draco28/ragcore/internal/assemble"
	"github.com/draco28/ragcore/internal/rerank"
	"github.com/draco28/ragcore/internal/store"
)

// QueryOptions are the per-call knobs that affect a Query's output (spec.md
// §4.8's cache key is computed over exactly these "relevant options").
type QueryOptions struct {
	TopK           int
	MinScore       float64
	Enhance        bool
	Rerank         bool
	Ordering       assemble.Ordering
	MaxTokens      int
	KeepAllQueries bool // when Enhance fans out, keep original + enhanced as alternatives
}

// Metadata is RAGResult's per-query bookkeeping (spec.md §3).
type Metadata struct {
	EffectiveQuery    string
	AllQueries        []string
	RetrievedCount    int
	RerankedCount     int
	AssembledCount    int
	DeduplicatedCount int
	DroppedCount      int
	FromCache         bool
	Timings           map[string]time.Duration
}

// RAGResult is the orchestrator's output (spec.md §3).
type RAGResult struct {
	Content          string
	EstimatedTokens  int
	Sources          []assemble.Source
	Assembly         assemble.AssembledContext
	RetrievalResults []store.RetrievalResult
	RerankerResults  []rerank.RerankerResult
	Metadata         Metadata
}

// Enhancer rewrites a user query into one better suited to retrieval,
// optionally returning alternative phrasings to fan out over (spec.md §4.8).
type Enhancer interface {
	Enhance(ctx context.Context, query string) (enhanced string, alternatives []string, err error)
}

// Warmer is implemented by components (e.g. a cross-encoder model) that
// benefit from a pre-load before the first real query (spec.md §4.8).
type Warmer interface {
	WarmUp(ctx context.Context) error
}
