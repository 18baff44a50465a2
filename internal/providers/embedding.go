// Package providers defines the narrow external-collaborator interfaces
// this module treats as out of scope (model inference back-ends) per
// spec.md §1/§6, plus the one decorator (CachedEmbeddingProvider) grounded
// on the teacher's internal/embed.CachedEmbedder.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Embedding is one embedding call's result.
type Embedding struct {
	Vector     []float32
	TokenCount int
	Model      string
}

// EmbeddingProvider is the capability interface for turning text into
// vectors (spec.md §6). Implementations must unit-normalize their output
// when the downstream index uses cosine distance.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (Embedding, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
	Dimensions() int
	ModelName() string
	MaxBatchSize() int
	Available() bool
}

// CachedEmbeddingProvider decorates an EmbeddingProvider with an LRU cache,
// grounded directly on internal/embed/cached.go's CachedEmbedder: same
// decorator shape, same golang-lru/v2 dependency, same hash-based cache key.
// It intentionally carries no TTL — the teacher's embedding cache doesn't
// either, since embeddings for fixed (text, model) pairs never go stale.
type CachedEmbeddingProvider struct {
	inner EmbeddingProvider
	cache *lru.Cache[string, Embedding]
}

// NewCachedEmbeddingProvider wraps inner with an LRU cache of the given size.
func NewCachedEmbeddingProvider(inner EmbeddingProvider, size int) (*CachedEmbeddingProvider, error) {
	if size <= 0 {
		size = 10_000
	}
	cache, err := lru.New[string, Embedding](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbeddingProvider{inner: inner, cache: cache}, nil
}

func cacheKey(text, model string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Embed checks the cache before delegating, and populates it on miss.
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	key := cacheKey(text, c.inner.ModelName())
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return Embedding{}, err
	}
	c.cache.Add(key, emb)
	return emb, nil
}

// EmbedBatch embeds only the cache misses, preserving input order.
func (c *CachedEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	result := make([]Embedding, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	model := c.inner.ModelName()
	for i, text := range texts {
		if v, ok := c.cache.Get(cacheKey(text, model)); ok {
			result[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	embedded, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		result[idx] = embedded[j]
		c.cache.Add(cacheKey(texts[idx], model), embedded[j])
	}
	return result, nil
}

func (c *CachedEmbeddingProvider) Dimensions() int    { return c.inner.Dimensions() }
func (c *CachedEmbeddingProvider) ModelName() string  { return c.inner.ModelName() }
func (c *CachedEmbeddingProvider) MaxBatchSize() int  { return c.inner.MaxBatchSize() }
func (c *CachedEmbeddingProvider) Available() bool    { return c.inner.Available() }

// Inner exposes the wrapped provider.
func (c *CachedEmbeddingProvider) Inner() EmbeddingProvider { return c.inner }
