// Package store holds the data model and the two index implementations
// (HNSW for dense vectors, an inverted index for BM25) behind the vector
// store facade.
package store

import "fmt"

// Chunk is an immutable, retrievable unit of text. Identity is ID; once
// indexed a chunk's content and embedding never change in place — mutation
// means delete-then-reinsert.
type Chunk struct {
	ID         string
	Content    string
	Metadata   map[string]any // values are scalar: string, bool, or a numeric type
	DocumentID string
	Embedding  []float32 // nil if the chunk carries no vector
}

// RetrievalResult is a chunk plus a normalized relevance score. Embedding is
// stripped from Chunk unless the caller asked for includeVectors.
type RetrievalResult struct {
	ID    string
	Chunk Chunk
	Score float64
}

// ErrDimensionMismatch is returned whenever a vector's length does not match
// the store's declared dimension. Fatal per spec — callers never retry it.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrInvalidFilter is returned for unknown metadata filter operators or
// malformed filter shapes.
type ErrInvalidFilter struct {
	Field  string
	Reason string
}

func (e *ErrInvalidFilter) Error() string {
	return fmt.Sprintf("invalid filter on field %q: %s", e.Field, e.Reason)
}

// ErrIndexNotBuilt is returned when a BM25 search is attempted before
// buildIndex has ever run.
var ErrIndexNotBuilt = fmt.Errorf("bm25 index not built")

// ErrInvalidMetadata is returned when a chunk's metadata map carries a
// non-scalar value (spec.md's string->scalar mapping).
type ErrInvalidMetadata struct {
	Field string
	Value any
}

func (e *ErrInvalidMetadata) Error() string {
	return fmt.Sprintf("metadata field %q has non-scalar value %v (%T)", e.Field, e.Value, e.Value)
}

// validateMetadata rejects any value that isn't a string, bool, or number,
// so a filter comparison never has to guess what a stored value "really" is.
func validateMetadata(metadata map[string]any) error {
	for field, v := range metadata {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return &ErrInvalidMetadata{Field: field, Value: v}
		}
	}
	return nil
}
