package store

import (
	"sort"
	"sync"
)

// VectorStoreConfig configures the facade.
type VectorStoreConfig struct {
	Dimensions int
	Backend    string // "hnsw" (default) or "bruteforce"
	HNSW       HNSWConfig
}

// DefaultVectorStoreConfig mirrors the HNSW defaults at the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Backend:    "hnsw",
		HNSW:       DefaultHNSWConfig(),
	}
}

// SearchOptions controls a single VectorStore.Search call.
type SearchOptions struct {
	TopK            int
	MinScore        float64
	Filter          map[string]any
	IncludeMetadata bool
	IncludeVectors  bool
}

type vectorRecord struct {
	id       string
	vector   []float32
	metadata map[string]any
}

// VectorStore is the dimension-checked CRUD facade over either the HNSW
// index or a brute-force scan (spec.md §4.3).
type VectorStore struct {
	mu sync.RWMutex

	cfg     VectorStoreConfig
	hnsw    *HNSWIndex
	records map[string]*vectorRecord // always populated, used by brute-force and to hold metadata
}

// NewVectorStore builds a facade at the given config.
func NewVectorStore(cfg VectorStoreConfig) *VectorStore {
	vs := &VectorStore{cfg: cfg, records: make(map[string]*vectorRecord)}
	if cfg.Backend != "bruteforce" {
		vs.hnsw = NewHNSWIndex(cfg.Dimensions, cfg.HNSW)
	}
	return vs
}

func (vs *VectorStore) checkDim(v []float32) error {
	if len(v) != vs.cfg.Dimensions {
		return &ErrDimensionMismatch{Expected: vs.cfg.Dimensions, Got: len(v)}
	}
	return nil
}

// Insert adds a vector. If id already exists this behaves like Upsert.
func (vs *VectorStore) Insert(id string, vector []float32, metadata map[string]any) error {
	return vs.Upsert(id, vector, metadata)
}

// Upsert inserts or replaces a vector and its metadata.
func (vs *VectorStore) Upsert(id string, vector []float32, metadata map[string]any) error {
	if err := vs.checkDim(vector); err != nil {
		return err
	}
	if err := validateMetadata(metadata); err != nil {
		return err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.records[id] = &vectorRecord{id: id, vector: vector, metadata: metadata}
	if vs.hnsw != nil {
		return vs.hnsw.Insert(id, vector)
	}
	return nil
}

// Delete removes a vector by id.
func (vs *VectorStore) Delete(id string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	delete(vs.records, id)
	if vs.hnsw != nil {
		vs.hnsw.Delete(id)
	}
}

// Count returns the number of live vectors.
func (vs *VectorStore) Count() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.records)
}

// Clear discards every vector.
func (vs *VectorStore) Clear() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.records = make(map[string]*vectorRecord)
	if vs.hnsw != nil {
		vs.hnsw.Clear()
	}
}

// VectorSearchResult is one match from the facade, with metadata/vector
// stripped unless requested.
type VectorSearchResult struct {
	ID       string
	Score    float64
	Metadata map[string]any
	Vector   []float32
}

// Search finds the topK nearest vectors to query, applying the metadata
// filter (conjunctive across fields) and minScore post-filter.
func (vs *VectorStore) Search(query []float32, opts SearchOptions) ([]VectorSearchResult, error) {
	if err := vs.checkDim(query); err != nil {
		return nil, err
	}
	if err := validateFilter(opts.Filter); err != nil {
		return nil, err
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	var raw []VectorSearchResult
	if vs.hnsw != nil {
		// HNSW has no native filter; over-fetch then filter, same as the
		// brute-force path, so both backends share one filtering pass.
		fetch := topK
		if len(opts.Filter) > 0 && fetch < len(vs.records) {
			fetch = len(vs.records)
		}
		hits, err := vs.hnsw.Search(query, fetch)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			rec := vs.records[h.ID]
			if rec == nil {
				continue
			}
			raw = append(raw, VectorSearchResult{ID: h.ID, Score: float64(h.Score), Metadata: rec.metadata, Vector: rec.vector})
		}
	} else {
		for id, rec := range vs.records {
			d := vs.cfg.HNSW.Distance
			if d == nil {
				d = CosineDistance
			}
			score := float64(distanceToScore(d(query, rec.vector)))
			raw = append(raw, VectorSearchResult{ID: id, Score: score, Metadata: rec.metadata, Vector: rec.vector})
		}
		sort.Slice(raw, func(i, j int) bool { return raw[i].Score > raw[j].Score })
	}

	filtered := make([]VectorSearchResult, 0, len(raw))
	for _, r := range raw {
		if !matchesFilter(r.Metadata, opts.Filter) {
			continue
		}
		if opts.MinScore > 0 && r.Score < opts.MinScore {
			continue
		}
		if !opts.IncludeMetadata {
			r.Metadata = nil
		}
		if !opts.IncludeVectors {
			r.Vector = nil
		}
		filtered = append(filtered, r)
		if len(filtered) >= topK {
			break
		}
	}
	return filtered, nil
}
