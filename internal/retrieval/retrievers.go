package retrieval

import (
	"context"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/store"
)

// Retriever is the capability interface implemented by DenseRetriever and
// BM25Retriever (spec.md §4.4) and used by HybridRetriever for fan-out.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error)
}

// DenseRetriever embeds the query, then searches the vector store.
type DenseRetriever struct {
	Embedder providers.EmbeddingProvider
	Store    *store.VectorStore
}

func (d *DenseRetriever) Name() string { return "dense" }

func (d *DenseRetriever) Retrieve(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error) {
	emb, err := d.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := d.Store.Search(emb.Vector, store.SearchOptions{TopK: topK, IncludeMetadata: true})
	if err != nil {
		return nil, err
	}
	results := make([]store.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = store.RetrievalResult{
			ID:    h.ID,
			Chunk: store.Chunk{ID: h.ID, Metadata: h.Metadata},
			Score: h.Score,
		}
	}
	return results, nil
}

// BM25Retriever tokenizes and scores via the inverted index.
type BM25Retriever struct {
	Index *store.BM25Index
	// Chunks resolves a document id to its full chunk, since the BM25 index
	// itself only stores term statistics, not content.
	Chunks func(id string) store.Chunk
}

func (s *BM25Retriever) Name() string { return "sparse" }

func (s *BM25Retriever) Retrieve(ctx context.Context, query string, topK int) ([]store.RetrievalResult, error) {
	hits, err := s.Index.Search(query, topK)
	if err != nil {
		return nil, err
	}
	results := make([]store.RetrievalResult, len(hits))
	for i, h := range hits {
		chunk := store.Chunk{ID: h.DocID}
		if s.Chunks != nil {
			chunk = s.Chunks(h.DocID)
		}
		results[i] = store.RetrievalResult{ID: h.DocID, Chunk: chunk, Score: h.Score}
	}
	return results, nil
}
