package vectorstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder returns preset vectors per text and a fixed fallback for
// everything else. Vectors are unit length so cosine scores are exact.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (e *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectorFor(t)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vectorFor(text), nil
}

func (e *stubEmbedder) vectorFor(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0, 0}
}

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"alpha content": {1, 0, 0, 0},
		"beta content":  {0, 1, 0, 0},
		"find alpha":    {1, 0, 0, 0},
		"find beta":     {0, 1, 0, 0},
	}}

	store, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, embedder, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, nil, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewChromemStore_RequiresPath(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{}, &stubEmbedder{}, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_EnsureCollection_Idempotent(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	exists, err := store.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestChromemStore_EnsureCollection_RejectsBadInput(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	err := store.EnsureCollection(ctx, "Bad-Name", 4)
	require.ErrorIs(t, err, ErrInvalidCollectionName)

	err = store.EnsureCollection(ctx, "docs", 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_AddDocuments_AssignsFreshUUIDs(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	docs := []Document{
		{Content: "alpha content", Metadata: map[string]any{"file_path": "/data/a.txt"}},
		{Content: "alpha content", Metadata: map[string]any{"file_path": "/data/a.txt"}},
	}

	first, err := store.AddDocuments(ctx, "docs", docs)
	require.NoError(t, err)
	second, err := store.AddDocuments(ctx, "docs", docs)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, id := range append(first, second...) {
		_, parseErr := uuid.Parse(id)
		require.NoError(t, parseErr, "id %q is not a UUID", id)
		assert.False(t, seen[id], "id %q assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, 4)
}

func TestChromemStore_AddDocuments_EmptyBatch(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	_, err := store.AddDocuments(ctx, "docs", nil)
	require.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestChromemStore_AddDocuments_UnknownCollection(t *testing.T) {
	store := newTestChromemStore(t)

	_, err := store.AddDocuments(context.Background(), "missing", []Document{{Content: "x"}})
	require.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemStore_Search_RanksAndFiltersByThreshold(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	_, err := store.AddDocuments(ctx, "docs", []Document{
		{Content: "alpha content", Metadata: map[string]any{"file_path": "/data/a.txt"}},
		{Content: "beta content", Metadata: map[string]any{"file_path": "/data/b.txt"}},
	})
	require.NoError(t, err)

	// Threshold 0.5 keeps only the exact-direction match.
	results, err := store.Search(ctx, "docs", "find alpha", 10, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha content", results[0].Content)
	assert.Equal(t, "/data/a.txt", results[0].Metadata["file_path"])
	assert.InDelta(t, 1.0, float64(results[0].Score), 0.001)

	// Threshold 0 returns both, best first.
	results, err = store.Search(ctx, "docs", "find alpha", 10, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha content", results[0].Content)
}

func TestChromemStore_Search_MetadataFilter(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	_, err := store.AddDocuments(ctx, "docs", []Document{
		{Content: "alpha content", Metadata: map[string]any{"file_path": "/data/a.txt"}},
		{Content: "beta content", Metadata: map[string]any{"file_path": "/data/b.txt"}},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "docs", "find alpha", 10, 0, map[string]any{"file_path": "/data/b.txt"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beta content", results[0].Content)
}

func TestChromemStore_Search_EmptyCollection(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	results, err := store.Search(ctx, "docs", "find alpha", 10, 0.5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_Search_UnknownCollection(t *testing.T) {
	store := newTestChromemStore(t)

	_, err := store.Search(context.Background(), "missing", "query", 10, 0.5, nil)
	require.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemStore_DeleteByPaths(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	_, err := store.AddDocuments(ctx, "docs", []Document{
		{Content: "alpha content", Metadata: map[string]any{"file_path": "/data/a.txt"}},
		{Content: "alpha content", Metadata: map[string]any{"file_path": "/data/a.txt"}},
		{Content: "beta content", Metadata: map[string]any{"file_path": "/data/b.txt"}},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteByPaths(ctx, "docs", []string{"/data/a.txt"}))

	info, err := store.GetCollectionInfo(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, info.PointCount)

	results, err := store.Search(ctx, "docs", "find beta", 10, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/data/b.txt", results[0].Metadata["file_path"])
}

func TestChromemStore_DeleteByPaths_EmptyIsNoOp(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	require.NoError(t, store.DeleteByPaths(ctx, "docs", nil))
}

func TestChromemStore_ListCollections(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "notes", 4))
	require.NoError(t, store.EnsureCollection(ctx, "work", 4))

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes", "work"}, names)
}

func TestChromemStore_GetCollectionInfo(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))

	info, err := store.GetCollectionInfo(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", info.Name)
	assert.Equal(t, 0, info.PointCount)
	assert.Equal(t, 4, info.VectorSize)

	_, err = store.GetCollectionInfo(ctx, "missing")
	require.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"alpha content": {1, 0, 0, 0},
		"find alpha":    {1, 0, 0, 0},
	}}
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Path: dir}, embedder, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, "docs", 4))
	_, err = store.AddDocuments(ctx, "docs", []Document{
		{Content: "alpha content", Metadata: map[string]any{"file_path": "/data/a.txt"}},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir}, embedder, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(ctx, "docs", "find alpha", 10, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha content", results[0].Content)
}
