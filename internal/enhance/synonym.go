// Package enhance provides rag.Enhancer implementations that rewrite a
// query before retrieval (spec.md §4.8's optional enhance stage).
package enhance

import (
	"context"
	"strings"
	"unicode"
)

// CodeSynonyms maps natural-language terms to their code vocabulary
// equivalents, grounded on the teacher's internal/search/synonyms.go. It
// addresses the vocabulary mismatch between how people ask questions and
// how code names things (e.g. "function" vs "func"/"method"/"def").
var CodeSynonyms = map[string][]string{
	"function":  {"func", "method", "fn", "def"},
	"method":    {"func", "fn", "def", "function"},
	"variable":  {"var", "field", "property"},
	"parameter": {"param", "arg", "argument"},
	"argument":  {"arg", "param", "parameter"},
	"error":     {"err", "exception", "failure"},
	"config":    {"cfg", "configuration", "settings"},
	"request":   {"req"},
	"response":  {"resp", "res"},
	"context":   {"ctx"},
	"database":  {"db", "store"},
	"retrieve":  {"fetch", "get", "query"},
	"search":    {"query", "find", "lookup"},
	"delete":    {"remove", "del"},
	"create":    {"new", "make", "init"},
	"update":    {"modify", "set", "patch"},
}

// SynonymEnhancer rewrites a query into itself plus the original terms'
// synonym and casing variants (spec.md §4.8's Enhancer interface), grounded
// on the teacher's search.QueryExpander. It never errs: an empty or
// already-exhaustive query just echoes back unchanged.
type SynonymEnhancer struct {
	synonyms      map[string][]string
	maxExpansions int
	includeCasing bool
}

// Option configures a SynonymEnhancer.
type Option func(*SynonymEnhancer)

// WithMaxExpansions caps how many synonyms are added per query term.
func WithMaxExpansions(n int) Option {
	return func(e *SynonymEnhancer) { e.maxExpansions = n }
}

// WithCasingVariants toggles Go-style casing variants (search -> Search).
func WithCasingVariants(enabled bool) Option {
	return func(e *SynonymEnhancer) { e.includeCasing = enabled }
}

// WithCustomSynonyms merges additional term -> synonym mappings.
func WithCustomSynonyms(synonyms map[string][]string) Option {
	return func(e *SynonymEnhancer) {
		for k, v := range synonyms {
			e.synonyms[k] = append(e.synonyms[k], v...)
		}
	}
}

// NewSynonymEnhancer builds an enhancer seeded with CodeSynonyms.
func NewSynonymEnhancer(opts ...Option) *SynonymEnhancer {
	e := &SynonymEnhancer{
		synonyms:      make(map[string][]string, len(CodeSynonyms)),
		maxExpansions: 3,
		includeCasing: true,
	}
	for k, v := range CodeSynonyms {
		e.synonyms[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enhance implements rag.Enhancer. It returns the expanded query as the
// primary query and the original, unexpanded query as the sole alternative
// so a caller that fans out over both still retrieves against raw terms.
func (e *SynonymEnhancer) Enhance(_ context.Context, query string) (string, []string, error) {
	expanded := e.expand(query)
	if expanded == query {
		return query, nil, nil
	}
	return expanded, []string{query}, nil
}

func (e *SynonymEnhancer) expand(query string) string {
	terms := tokenize(query)
	if len(terms) == 0 {
		return query
	}

	seen := make(map[string]bool, len(terms)*2)
	expanded := make([]string, 0, len(terms)*2)

	for _, term := range terms {
		lower := strings.ToLower(term)
		if !seen[lower] {
			expanded = append(expanded, term)
			seen[lower] = true
		}
	}

	for _, term := range terms {
		added := 0
		for _, syn := range e.synonyms[strings.ToLower(term)] {
			lowerSyn := strings.ToLower(syn)
			if !seen[lowerSyn] && added < e.maxExpansions {
				expanded = append(expanded, syn)
				seen[lowerSyn] = true
				added++
			}
		}
	}

	if e.includeCasing {
		for _, term := range terms {
			for _, v := range casingVariants(term) {
				lowerV := strings.ToLower(v)
				if !seen[lowerV] {
					expanded = append(expanded, v)
					seen[lowerV] = true
				}
			}
		}
	}

	return strings.Join(expanded, " ")
}

// tokenize splits on whitespace/punctuation, then on camelCase/snake_case
// boundaries within each token.
func tokenize(query string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	var result []string
	for _, token := range tokens {
		result = append(result, splitCamelSnake(token)...)
	}
	return result
}

func splitCamelSnake(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, p := range strings.Split(token, "_") {
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}

	var parts []string
	var current strings.Builder
	for i, r := range token {
		if i > 0 && unicode.IsUpper(r) && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// casingVariants returns Go-style casing alternatives that differ from term.
func casingVariants(term string) []string {
	if len(term) == 0 {
		return nil
	}
	lower := strings.ToLower(term)
	upper := strings.ToUpper(term)
	title := strings.ToUpper(term[:1]) + lower[1:]

	var variants []string
	if term != lower {
		variants = append(variants, lower)
	}
	if term != upper && len(term) <= 4 {
		variants = append(variants, upper)
	}
	if term != title {
		variants = append(variants, title)
	}
	return variants
}
