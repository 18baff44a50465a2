package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/draco28/ragcore/internal/assemble"
	"github.com/draco28/ragcore/internal/config"
	"github.com/draco28/ragcore/internal/enhance"
	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/rag"
	"github.com/draco28/ragcore/internal/rerank"
	"github.com/draco28/ragcore/internal/retrieval"
	"github.com/draco28/ragcore/internal/store"
)

// pipeline bundles the constructed components a subcommand needs, built
// fresh from one in-memory corpus per invocation (spec.md's Non-goals
// exclude a persistent on-disk index format).
type pipeline struct {
	Embedder  providers.EmbeddingProvider
	Retriever *retrieval.HybridRetriever
	Engine    *rag.Engine
}

// distanceFunc resolves a config.StoreConfig.Distance name to the store
// package's pluggable Distance function.
func distanceFunc(name string) store.Distance {
	switch strings.ToLower(name) {
	case "dot":
		return store.DotDistance
	case "euclidean":
		return store.EuclideanDistance
	default:
		return store.CosineDistance
	}
}

// buildPipeline indexes chunks into a fresh vector store + BM25 index, wires
// a HybridRetriever over them, and assembles a rag.Engine per cfg.
func buildPipeline(cfg *config.Config, chunks []store.Chunk) (*pipeline, error) {
	embedder, err := providers.NewCachedEmbeddingProvider(providers.NewStaticEmbeddingProvider(), cfg.Cache.EmbeddingCapacity)
	if err != nil {
		return nil, fmt.Errorf("build embedding cache: %w", err)
	}

	vectorCfg := store.VectorStoreConfig{
		Dimensions: embedder.Dimensions(),
		Backend:    cfg.Store.Backend,
		HNSW: store.HNSWConfig{
			M:              cfg.Store.M,
			EfConstruction: cfg.Store.EfConstruction,
			EfSearch:       cfg.Store.EfSearch,
			Distance:       distanceFunc(cfg.Store.Distance),
		},
	}
	vectorStore := store.NewVectorStore(vectorCfg)

	bm25Cfg := store.DefaultBM25Config()
	bm25Cfg.K1 = cfg.BM25.K1
	bm25Cfg.B = cfg.BM25.B
	bm25Cfg.MinDocFreq = cfg.BM25.MinDocFreq
	if cfg.BM25.MaxDocFreqRatio > 0 {
		bm25Cfg.MaxDocFreqRatio = cfg.BM25.MaxDocFreqRatio
	}
	bm25Index := store.NewBM25Index(bm25Cfg)

	chunksByID := make(map[string]store.Chunk, len(chunks))
	bm25Docs := make([]store.Document, len(chunks))
	for i, c := range chunks {
		chunksByID[c.ID] = c
		bm25Docs[i] = store.Document{ID: c.ID, Content: c.Content}

		emb, err := embedder.Embed(context.Background(), c.Content)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		if err := vectorStore.Insert(c.ID, emb.Vector, c.Metadata); err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	bm25Index.BuildIndex(bm25Docs)

	dense := &retrieval.DenseRetriever{Embedder: embedder, Store: vectorStore}
	sparse := &retrieval.BM25Retriever{Index: bm25Index, Chunks: func(id string) store.Chunk { return chunksByID[id] }}
	hybrid := retrieval.NewHybridRetriever(dense, sparse)
	if cfg.Retrieval.RRFConstant > 0 {
		hybrid.Fusion = retrieval.NewRRFFusionWithK(cfg.Retrieval.RRFConstant)
	}

	reranker, err := buildReranker(cfg, embedder)
	if err != nil {
		return nil, err
	}

	engineCfg := rag.EngineConfig{
		TopK:      cfg.Retrieval.TopK,
		Ordering:  assemble.Ordering(strings.ToLower(cfg.Assemble.Ordering)),
		MaxTokens: cfg.Assemble.MaxTokens,
	}
	opts := []rag.EngineOption{
		rag.WithCache(cfg.Cache.ResultCapacity, time.Duration(cfg.Cache.ResultTTLSeconds)*time.Second),
	}
	if reranker != nil {
		opts = append(opts, rag.WithReranker(reranker))
	}
	if cfg.Retrieval.Enhance {
		opts = append(opts, rag.WithEnhancer(enhance.NewSynonymEnhancer()))
	}
	engine, err := rag.NewEngine(hybrid, engineCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("build rag engine: %w", err)
	}

	return &pipeline{Embedder: embedder, Retriever: hybrid, Engine: engine}, nil
}

// buildRerankerForDemo mirrors buildReranker but discards its error: when no
// reranker can be built (e.g. the crossencoder strategy) it returns a nil
// reranker and a nil error without printing anything, so rerank-demo still
// shows the unranked fused list.
func buildRerankerForDemo(cfg *config.Config, p *pipeline) (rerank.Reranker, error) {
	r, err := buildReranker(cfg, p.Embedder)
	if err != nil {
		return nil, nil
	}
	return r, nil
}

func toRetrievalResultsForDemo(hybrid []retrieval.HybridResult) []store.RetrievalResult {
	out := make([]store.RetrievalResult, len(hybrid))
	for i, h := range hybrid {
		out[i] = store.RetrievalResult{ID: h.ID, Chunk: h.Chunk, Score: h.RRFScore}
	}
	return out
}

func rankerNames(rankers []retrieval.Retriever) string {
	names := make([]string, len(rankers))
	for i, r := range rankers {
		names[i] = r.Name()
	}
	return strings.Join(names, ", ")
}

// buildReranker wires cfg.Rerank.Strategy to a concrete rerank.Reranker.
// "crossencoder" has no wiring here: it needs a real providers.CrossEncoder
// back-end, which spec.md keeps out of scope (see DESIGN.md).
func buildReranker(cfg *config.Config, embedder providers.EmbeddingProvider) (rerank.Reranker, error) {
	switch strings.ToLower(cfg.Rerank.Strategy) {
	case "mmr":
		r := rerank.NewMMRReranker(embedder)
		if cfg.Rerank.MMRLambda > 0 {
			r.Lambda = cfg.Rerank.MMRLambda
		}
		return r, nil
	case "llm":
		return rerank.NewLLMScorerReranker(providers.NewStaticChatModel()), nil
	case "crossencoder":
		return nil, fmt.Errorf("rerank strategy %q requires a cross-encoder back-end, which is out of scope for this in-memory demo", cfg.Rerank.Strategy)
	default:
		return nil, nil
	}
}
