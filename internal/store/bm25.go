package store

import (
	"math"
	"sort"
	"sync"
)

// BM25Config parametrizes the scoring formula and vocabulary filtering.
type BM25Config struct {
	K1              float64
	B               float64
	MinDocFreq      int     // terms with df < MinDocFreq are dropped from the vocabulary
	MaxDocFreqRatio float64 // terms with df > docCount*MaxDocFreqRatio are dropped
	Tokenizer       Tokenizer
}

// DefaultBM25Config matches spec.md §4.2's defaults.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:              1.2,
		B:               0.75,
		MinDocFreq:      1,
		MaxDocFreqRatio: 1.0,
		Tokenizer:       DefaultTokenizer,
	}
}

// Document is a single BM25-indexable unit.
type Document struct {
	ID      string
	Content string
}

// BM25Result is one scored document.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// BM25Stats summarizes index size for diagnostics.
type BM25Stats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

type bm25Posting struct {
	docID string
	tf    int
}

// BM25Index is a from-scratch inverted index with BM25 scoring (spec.md
// §4.2). It does not wrap any third-party search engine: the spec requires
// direct control over the scoring formula, the df-filtering knobs, and
// IndexNotBuilt semantics.
type BM25Index struct {
	mu sync.RWMutex

	cfg BM25Config

	built    bool
	postings map[string][]bm25Posting   // term -> postings
	docLen   map[string]int             // docID -> token count
	docTerms map[string]map[string]int  // docID -> term -> tf (for delete)
	idf      map[string]float64
	docCount int
	totalLen int
}

// NewBM25Index constructs an empty, unbuilt index.
func NewBM25Index(cfg BM25Config) *BM25Index {
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = DefaultTokenizer
	}
	return &BM25Index{
		cfg:      cfg,
		postings: make(map[string][]bm25Posting),
		docLen:   make(map[string]int),
		docTerms: make(map[string]map[string]int),
		idf:      make(map[string]float64),
	}
}

// BuildIndex replaces any previous index with one built from docs.
func (b *BM25Index) BuildIndex(docs []Document) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.postings = make(map[string][]bm25Posting)
	b.docLen = make(map[string]int)
	b.docTerms = make(map[string]map[string]int)
	b.idf = make(map[string]float64)
	b.totalLen = 0

	docFreq := make(map[string]int)
	tfByDoc := make(map[string]map[string]int, len(docs))

	for _, doc := range docs {
		tokens := b.cfg.Tokenizer(doc.Content)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		tfByDoc[doc.ID] = tf
		b.docLen[doc.ID] = len(tokens)
		b.totalLen += len(tokens)
		for term := range tf {
			docFreq[term]++
		}
	}

	b.docCount = len(docs)
	maxDF := int(math.Floor(float64(b.docCount) * b.cfg.MaxDocFreqRatio))

	for _, doc := range docs {
		tf := tfByDoc[doc.ID]
		kept := make(map[string]int, len(tf))
		for term, count := range tf {
			df := docFreq[term]
			if df < b.cfg.MinDocFreq {
				continue
			}
			if b.cfg.MaxDocFreqRatio < 1.0 && df > maxDF {
				continue
			}
			kept[term] = count
			b.postings[term] = append(b.postings[term], bm25Posting{docID: doc.ID, tf: count})
		}
		b.docTerms[doc.ID] = kept
	}

	for term, df := range docFreq {
		if df < b.cfg.MinDocFreq {
			continue
		}
		if b.cfg.MaxDocFreqRatio < 1.0 && df > maxDF {
			continue
		}
		b.idf[term] = math.Log((float64(b.docCount)-float64(df)+0.5)/(float64(df)+0.5) + 1)
	}

	b.built = true
}

func (b *BM25Index) avgDocLen() float64 {
	if b.docCount == 0 {
		return 0
	}
	return float64(b.totalLen) / float64(b.docCount)
}

// Search scores every document containing at least one query term and
// returns the topK highest, descending, min-max normalized to [0,1].
func (b *BM25Index) Search(query string, topK int) ([]BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.built {
		return nil, ErrIndexNotBuilt
	}

	queryTokens := b.cfg.Tokenizer(query)
	if len(queryTokens) == 0 {
		return []BM25Result{}, nil
	}

	avgdl := b.avgDocLen()
	scores := make(map[string]float64)
	matched := make(map[string]map[string]struct{})

	seen := make(map[string]struct{})
	for _, term := range queryTokens {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		idf, ok := b.idf[term]
		if !ok {
			continue
		}
		for _, p := range b.postings[term] {
			dl := b.docLen[p.docID]
			num := float64(p.tf) * (b.cfg.K1 + 1)
			den := float64(p.tf) + b.cfg.K1*(1-b.cfg.B+b.cfg.B*float64(dl)/nonZero(avgdl))
			scores[p.docID] += idf * num / den
			if matched[p.docID] == nil {
				matched[p.docID] = make(map[string]struct{})
			}
			matched[p.docID][term] = struct{}{}
		}
	}

	results := make([]BM25Result, 0, len(scores))
	for docID, score := range scores {
		terms := make([]string, 0, len(matched[docID]))
		for t := range matched[docID] {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		results = append(results, BM25Result{DocID: docID, Score: score, MatchedTerms: terms})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	if len(results) > 0 && results[0].Score > 0 {
		top := results[0].Score
		for i := range results {
			results[i].Score = results[i].Score / top
		}
	}

	return results, nil
}

func nonZero(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

// Delete removes documents from the index, pruning postings and
// recalculating the length accumulator so AllIDs/Stats stay consistent.
// Because idf values are not recomputed from the remaining corpus (doing so
// correctly requires the full remaining document set, which this index does
// not retain after BuildIndex), callers that need accurate idf after a large
// deletion should call BuildIndex again with the surviving documents.
func (b *BM25Index) Delete(docIDs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.built {
		return
	}
	for _, id := range docIDs {
		terms, ok := b.docTerms[id]
		if !ok {
			continue
		}
		for term := range terms {
			b.postings[term] = removePosting(b.postings[term], id)
			if len(b.postings[term]) == 0 {
				delete(b.postings, term)
				delete(b.idf, term)
			}
		}
		b.totalLen -= b.docLen[id]
		delete(b.docLen, id)
		delete(b.docTerms, id)
		b.docCount--
	}
}

func removePosting(postings []bm25Posting, docID string) []bm25Posting {
	out := postings[:0]
	for _, p := range postings {
		if p.docID != docID {
			out = append(out, p)
		}
	}
	return out
}

// AllIDs returns every document id currently indexed.
func (b *BM25Index) AllIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.docTerms))
	for id := range b.docTerms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats reports index size for diagnostics.
func (b *BM25Index) Stats() BM25Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BM25Stats{
		DocumentCount: b.docCount,
		TermCount:     len(b.postings),
		AvgDocLength:  b.avgDocLen(),
	}
}

// Clear discards the index entirely; Search will again fail with
// ErrIndexNotBuilt until BuildIndex runs.
func (b *BM25Index) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = false
	b.postings = make(map[string][]bm25Posting)
	b.docLen = make(map[string]int)
	b.docTerms = make(map[string]map[string]int)
	b.idf = make(map[string]float64)
	b.docCount = 0
	b.totalLen = 0
}
