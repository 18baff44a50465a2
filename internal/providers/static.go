package providers

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// StaticDimensions is the vector width produced by StaticEmbeddingProvider.
const StaticDimensions = 128

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbeddingProvider is a dependency-free EmbeddingProvider: a
// hash-of-tokens-and-ngrams vector, grounded on the teacher's
// internal/embed.StaticEmbedder. It exists for the same reason the teacher
// ships one — callers (here, cmd/ragctl's demo subcommands) need a real
// EmbeddingProvider that doesn't depend on
// a model inference back-end, which spec.md keeps out of scope.
type StaticEmbeddingProvider struct{}

var _ EmbeddingProvider = StaticEmbeddingProvider{}

// NewStaticEmbeddingProvider creates a hash-based embedding provider.
func NewStaticEmbeddingProvider() StaticEmbeddingProvider {
	return StaticEmbeddingProvider{}
}

func (StaticEmbeddingProvider) Embed(_ context.Context, text string) (Embedding, error) {
	return Embedding{
		Vector:     normalizeVector(vectorize(text)),
		TokenCount: len(tokenize(text)),
		Model:      "static",
	}, nil
}

func (p StaticEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		emb, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (StaticEmbeddingProvider) Dimensions() int    { return StaticDimensions }
func (StaticEmbeddingProvider) ModelName() string  { return "static" }
func (StaticEmbeddingProvider) MaxBatchSize() int  { return 256 }
func (StaticEmbeddingProvider) Available() bool    { return true }

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

func vectorize(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, tok := range tokenize(text) {
		vector[hashToIndex(tok, StaticDimensions)] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ng := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ng, StaticDimensions)] += ngramWeight
	}

	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCamelCase(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSquares))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
