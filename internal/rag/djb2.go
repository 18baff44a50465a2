package rag

import "fmt"

// djb2 is the classic Bernstein hash, used here purely as a cheap,
// deterministic cache-key digest (not a security hash).
func djb2(s string) uint64 {
	h := uint64(5381)
	for i := 0; i < len(s); i++ {
		h = ((h << 5) + h) + uint64(s[i])
	}
	return h
}

// cacheKey computes spec.md §4.8's cache key: djb2(query || canonical(relevant_options)).
// Every QueryOptions field is part of the canonical form, since each one
// changes the output (KeepAllQueries changes which queries are retrieved).
func cacheKey(query string, opts QueryOptions) string {
	canonical := fmt.Sprintf("topK=%d|minScore=%g|enhance=%t|rerank=%t|ordering=%s|maxTokens=%d|keepAll=%t",
		opts.TopK, opts.MinScore, opts.Enhance, opts.Rerank, opts.Ordering, opts.MaxTokens, opts.KeepAllQueries)
	return fmt.Sprintf("%x", djb2(query+"\x00"+canonical))
}
