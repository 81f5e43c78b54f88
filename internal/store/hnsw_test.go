package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TS01: Add and Search
func TestHNSWStore_AddAndSearch(t *testing.T) {
	// Given: vectors a=[1,0,0,0], b=[0,1,0,0], c=[0.9,0.1,0,0]
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b", "c"}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	}))

	// When: searching for [1,0,0,0] with k=2
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	// Then: a then c, best first
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Greater(t, results[0].Score, float32(0.99))
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

// TS02: Repeated ID overwrites
func TestHNSWStore_RepeatedIDLaterWins(t *testing.T) {
	// Given: "a" added twice with different vectors
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0, 0}, {0, 0, 1, 0}}))
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{0, 1, 0, 0}}))

	// When: searching near the second vector
	results, err := s.Search(ctx, []float32{0, 1, 0, 0}, 3)
	require.NoError(t, err)

	// Then: one live "a" carrying the later vector
	assert.Equal(t, 2, s.Count())
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
	assert.Greater(t, results[0].Score, float32(0.99))

	seen := map[string]int{}
	for _, r := range results {
		seen[r.ID]++
	}
	assert.Equal(t, 1, seen["a"])
}

// TS03: Dimension checks
func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = s.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorAs(t, err, &dimErr)
}

func TestHNSWStore_SearchEmptyAndZeroK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	results, err = s.Search(ctx, []float32{1, 0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewHNSWStore_RejectsZeroDimensions(t *testing.T) {
	_, err := NewHNSWStore(VectorStoreConfig{})
	assert.Error(t, err)
}

// TS04: Persistence
func TestHNSWStore_SaveAndLoad(t *testing.T) {
	// Given: a saved store
	path := filepath.Join(t.TempDir(), "gen-1", VectorsFile)
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Save(path))

	// When: loading into a fresh store
	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	// Then: contents and search behavior survive
	assert.Equal(t, 2, loaded.Count())
	assert.True(t, loaded.Contains("b"))
	results, err := loaded.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)

	dims, err := ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
	assert.NoFileExists(t, path+".tmp")
}

func TestReadHNSWStoreDimensions_MissingIsZero(t *testing.T) {
	dims, err := ReadHNSWStoreDimensions(filepath.Join(t.TempDir(), VectorsFile))
	require.NoError(t, err)
	assert.Zero(t, dims)
}

func TestHNSWStore_ClosedRejectsWork(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Error(t, s.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	assert.Zero(t, s.Count())
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, distanceToScore(0, "cos"), 1e-6)
	assert.InDelta(t, 0.5, distanceToScore(1, "cos"), 1e-6)
	assert.InDelta(t, 0.0, distanceToScore(2, "cos"), 1e-6)
	assert.InDelta(t, 0.5, distanceToScore(1, "l2"), 1e-6)
}
