package store

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

// Scenario from spec.md §8.2.
func TestHNSWIndex_NearNeighborScenario(t *testing.T) {
	const dim = 64
	idx := NewHNSWIndex(dim, DefaultHNSWConfig())

	require.NoError(t, idx.Insert("e1", unitVector(dim, 0)))
	require.NoError(t, idx.Insert("e2", unitVector(dim, 1)))
	require.NoError(t, idx.Insert("e3", unitVector(dim, 2)))

	results, err := idx.Search(unitVector(dim, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "e1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestHNSWIndex_DimensionMismatchIsFatal(t *testing.T) {
	idx := NewHNSWIndex(8, DefaultHNSWConfig())
	err := idx.Insert("x", make([]float32, 4))
	var dimErr *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
}

func TestHNSWIndex_EmptyIndexReturnsEmptyNotError(t *testing.T) {
	idx := NewHNSWIndex(8, DefaultHNSWConfig())
	results, err := idx.Search(make([]float32, 8), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_SearchOrderingNoDuplicatesNoTombstones(t *testing.T) {
	const dim = 16
	idx := NewHNSWIndex(dim, DefaultHNSWConfig())

	n := 50
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for d := 0; d < dim; d++ {
			v[d] = float32((i+d)%7) - 3
		}
		require.NoError(t, idx.Insert(fmt.Sprintf("node-%d", i), NormalizeVector(v)))
	}
	idx.Delete("node-3")
	idx.Delete("node-17")

	query := make([]float32, dim)
	for d := 0; d < dim; d++ {
		query[d] = float32(d%7) - 3
	}
	query = NormalizeVector(query)

	results, err := idx.Search(query, 20)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i, r := range results {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
		assert.NotEqual(t, "node-3", r.ID)
		assert.NotEqual(t, "node-17", r.ID)
		if i > 0 {
			assert.LessOrEqual(t, results[i-1].Distance, r.Distance)
		}
	}
}

func TestHNSWIndex_SizeReflectsTombstones(t *testing.T) {
	idx := NewHNSWIndex(4, DefaultHNSWConfig())
	require.NoError(t, idx.Insert("a", NormalizeVector([]float32{1, 2, 3, 4})))
	require.NoError(t, idx.Insert("b", NormalizeVector([]float32{4, 3, 2, 1})))
	assert.Equal(t, 2, idx.Size())
	idx.Delete("a")
	assert.Equal(t, 1, idx.Size())
	assert.False(t, idx.Has("a"))
	assert.True(t, idx.Has("b"))
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4, 0})
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	assert.Less(t, math.Abs(math.Sqrt(sumSq)-1), 1e-6)
}

func TestNormalizeVector_ZeroVectorUnchanged(t *testing.T) {
	v := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}
