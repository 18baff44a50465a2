package rag

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/draco28/ragcore/internal/assemble"
	"github.com/draco28/ragcore/internal/rerank"
	"github.com/draco28/ragcore/internal/resilience"
	"github.com/draco28/ragcore/internal/retrieval"
	"github.com/draco28/ragcore/internal/store"
)

var tracer = otel.Tracer("github.com/draco28/ragcore/internal/rag")

// stage opens a span named "rag.<component>" and returns a function that
// ends it, recording the elapsed time both as a span attribute and in
// timings[component] (spec.md's per-stage metadata, supplemented so each
// entry carries its component name via the span itself).
func stage(ctx context.Context, component string, timings map[string]time.Duration) (context.Context, func()) {
	spanCtx, span := tracer.Start(ctx, "rag."+component, trace.WithAttributes(attribute.String("rag.component", component)))
	start := time.Now()
	return spanCtx, func() {
		elapsed := time.Since(start)
		timings[component] = elapsed
		span.SetAttributes(attribute.Int64("rag.duration_ms", elapsed.Milliseconds()))
		span.End()
	}
}

// DefaultTopK mirrors the teacher's EngineConfig default limit.
const DefaultTopK = 10

// EngineConfig carries the defaults applied whenever a QueryOptions field is
// left at its zero value.
type EngineConfig struct {
	TopK      int
	MinScore  float64
	Ordering  assemble.Ordering
	MaxTokens int
	CacheTTL  time.Duration
}

// DefaultEngineConfig matches spec.md §4.8's defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{TopK: DefaultTopK, Ordering: assemble.OrderingRelevance}
}

// Engine coordinates enhance -> retrieve -> rerank -> assemble (spec.md
// §4.8), grounded on the teacher's Engine: functional-option dependency
// injection, nil-dependency validation in the constructor, graceful
// degradation on optional-stage failure.
type Engine struct {
	retriever *retrieval.HybridRetriever
	reranker  rerank.Reranker
	enhancer  Enhancer
	cache     *Cache
	config    EngineConfig
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

func WithReranker(r rerank.Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

func WithEnhancer(enh Enhancer) EngineOption {
	return func(e *Engine) { e.enhancer = enh }
}

func WithCache(capacity int, ttl time.Duration) EngineOption {
	return func(e *Engine) { e.cache = NewCache(capacity, ttl) }
}

// NewEngine builds an Engine over retriever, failing fast on a nil
// dependency rather than surfacing a nil-pointer panic mid-query.
func NewEngine(retriever *retrieval.HybridRetriever, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if retriever == nil {
		return nil, resilience.New(resilience.ErrCodeConfigError, "retriever is required", nil)
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.Ordering == "" {
		config.Ordering = assemble.OrderingRelevance
	}
	e := &Engine{retriever: retriever, config: config}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Query runs the full pipeline for a single user query (spec.md §4.8).
func (e *Engine) Query(ctx context.Context, query string, opts QueryOptions) (RAGResult, error) {
	if err := ctx.Err(); err != nil {
		return RAGResult{}, resilience.New(resilience.ErrCodeAborted, "query aborted", err)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return RAGResult{}, nil
	}
	opts = e.applyDefaults(opts)

	ctx, rootSpan := tracer.Start(ctx, "rag.query", trace.WithAttributes(attribute.String("rag.component", "query")))
	defer rootSpan.End()

	timings := make(map[string]time.Duration)
	overallStart := time.Now()

	key := cacheKey(query, opts)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			cached.Metadata.FromCache = true
			return cached, nil
		}
	}

	effectiveQuery, queries := e.enhance(ctx, query, opts, timings)

	if err := ctx.Err(); err != nil {
		return RAGResult{}, resilience.New(resilience.ErrCodeAborted, "query aborted", err)
	}
	retrieveCtx, endRetrieve := stage(ctx, "retrieve", timings)
	merged, err := e.retrieveMerged(retrieveCtx, queries, opts)
	endRetrieve()
	if err != nil {
		return RAGResult{}, resilience.Wrap(resilience.ErrCodeRetrievalFailed, err)
	}

	assembleInputs := assemble.FromRetrievalResults(merged)
	var rerankerResults []rerank.RerankerResult
	if opts.Rerank && e.reranker != nil {
		if err := ctx.Err(); err != nil {
			return RAGResult{}, resilience.New(resilience.ErrCodeAborted, "query aborted", err)
		}
		rerankCtx, endRerank := stage(ctx, "rerank", timings)
		rerankerResults, err = e.reranker.Rerank(rerankCtx, effectiveQuery, merged, rerank.Options{MinScore: opts.MinScore})
		endRerank()
		if err != nil {
			return RAGResult{}, resilience.Wrap(resilience.ErrCodeRerankingFailed, err)
		}
		assembleInputs = assemble.FromRerankerResults(rerankerResults)
	}

	if err := ctx.Err(); err != nil {
		return RAGResult{}, resilience.New(resilience.ErrCodeAborted, "query aborted", err)
	}
	_, endAssemble := stage(ctx, "assemble", timings)
	assembled := assemble.Assemble(assembleInputs, assemble.Options{
		Ordering:  opts.Ordering,
		MaxTokens: opts.MaxTokens,
	})
	endAssemble()
	timings["total"] = time.Since(overallStart)

	result := RAGResult{
		Content:          assembled.Content,
		EstimatedTokens:  assembled.EstimatedTokens,
		Sources:          assembled.Sources,
		Assembly:         assembled,
		RetrievalResults: merged,
		RerankerResults:  rerankerResults,
		Metadata: Metadata{
			EffectiveQuery:    effectiveQuery,
			AllQueries:        queries,
			RetrievedCount:    len(merged),
			RerankedCount:     len(rerankerResults),
			AssembledCount:    assembled.ChunkCount,
			DeduplicatedCount: assembled.DeduplicatedCount,
			DroppedCount:      assembled.DroppedCount,
			Timings:           timings,
		},
	}

	if e.cache != nil {
		e.cache.Set(key, result) // cache failures are non-fatal by construction: Set cannot itself error
	}
	return result, nil
}

// WarmUp pre-loads any configured component that implements Warmer (e.g. a
// cross-encoder model behind the reranker).
func (e *Engine) WarmUp(ctx context.Context) error {
	if w, ok := e.reranker.(Warmer); ok {
		return w.WarmUp(ctx)
	}
	return nil
}

func (e *Engine) applyDefaults(opts QueryOptions) QueryOptions {
	if opts.TopK <= 0 {
		opts.TopK = e.config.TopK
	}
	if opts.Ordering == "" {
		opts.Ordering = e.config.Ordering
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = e.config.MaxTokens
	}
	if opts.MinScore == 0 {
		opts.MinScore = e.config.MinScore
	}
	return opts
}

// enhance optionally rewrites the query and returns the full set of queries
// to run retrieval over. Enhancer failure degrades gracefully to the
// original query rather than failing the whole call.
func (e *Engine) enhance(ctx context.Context, query string, opts QueryOptions, timings map[string]time.Duration) (string, []string) {
	if !opts.Enhance || e.enhancer == nil {
		return query, []string{query}
	}
	enhanceCtx, endEnhance := stage(ctx, "enhance", timings)
	enhanced, alternatives, err := e.enhancer.Enhance(enhanceCtx, query)
	endEnhance()
	if err != nil {
		return query, []string{query}
	}
	queries := []string{enhanced}
	if opts.KeepAllQueries {
		queries = append(queries, alternatives...)
	}
	return enhanced, dedupStrings(queries)
}

// retrieveMerged runs retrieval for every query concurrently (when more than
// one) and merges by id, keeping the highest score per spec.md §4.8.
func (e *Engine) retrieveMerged(ctx context.Context, queries []string, opts QueryOptions) ([]store.RetrievalResult, error) {
	if len(queries) == 1 {
		hybrid, err := e.retriever.Retrieve(ctx, queries[0], opts.TopK)
		if err != nil {
			return nil, err
		}
		return toRetrievalResults(hybrid), nil
	}

	perQuery := make([][]store.RetrievalResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			hybrid, err := e.retriever.Retrieve(gctx, q, opts.TopK)
			if err != nil {
				return nil // one sub-query failing degrades gracefully
			}
			perQuery[i] = toRetrievalResults(hybrid)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := make(map[string]store.RetrievalResult)
	order := make([]string, 0)
	for _, results := range perQuery {
		for _, r := range results {
			existing, ok := best[r.ID]
			if !ok {
				order = append(order, r.ID)
			}
			if !ok || r.Score > existing.Score {
				best[r.ID] = r
			}
		}
	}

	merged := make([]store.RetrievalResult, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	sortByScoreDesc(merged)
	if opts.TopK > 0 && len(merged) > opts.TopK {
		merged = merged[:opts.TopK]
	}
	return merged, nil
}

func toRetrievalResults(hybrid []retrieval.HybridResult) []store.RetrievalResult {
	out := make([]store.RetrievalResult, len(hybrid))
	for i, h := range hybrid {
		out[i] = store.RetrievalResult{ID: h.ID, Chunk: h.Chunk, Score: h.RRFScore}
	}
	return out
}

func sortByScoreDesc(results []store.RetrievalResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
