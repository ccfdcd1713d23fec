package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(name string, vec []float32, labels map[string]string) core.VectorRecord {
	l := map[string]string{core.LabelText: "text of " + name, core.LabelSHA256: name}
	for k, v := range labels {
		l[k] = v
	}
	return core.VectorRecord{Name: name, Embedding: vec, Labels: l}
}

func newTestStore(t *testing.T) storage.VectorStore {
	t.Helper()
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnsureCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.EnsureCollection(ctx, "docs", 3, storage.MetricCosine))
	require.NoError(t, store.EnsureCollection(ctx, "docs", 3, storage.MetricCosine), "second call is a no-op")

	err := store.EnsureCollection(ctx, "docs", 4, storage.MetricCosine)
	assert.ErrorIs(t, err, storage.ErrCollectionMismatch)

	err = store.EnsureCollection(ctx, "docs", 3, storage.MetricDot)
	assert.ErrorIs(t, err, storage.ErrCollectionMismatch)

	assert.ErrorIs(t, store.EnsureCollection(ctx, "bad", 0, storage.MetricCosine), storage.ErrInvalidQuery)
	assert.ErrorIs(t, store.EnsureCollection(ctx, "bad", 3, "manhattan"), storage.ErrUnsupportedMetric)

	count, err := store.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("unknown collection", func(t *testing.T) {
		err := store.Upsert(ctx, "missing", []core.VectorRecord{record("a", []float32{1, 0, 0}, nil)})
		assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
	})

	require.NoError(t, store.EnsureCollection(ctx, "docs", 3, storage.MetricCosine))

	t.Run("dimension mismatch", func(t *testing.T) {
		err := store.Upsert(ctx, "docs", []core.VectorRecord{record("a", []float32{1, 0}, nil)})
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("same content replaces", func(t *testing.T) {
		recs := []core.VectorRecord{
			record("a", []float32{1, 0, 0}, nil),
			record("b", []float32{0, 1, 0}, nil),
		}
		require.NoError(t, store.Upsert(ctx, "docs", recs))
		require.NoError(t, store.Upsert(ctx, "docs", recs[:1]))

		count, err := store.Count(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "docs", 3, storage.MetricCosine))

	require.NoError(t, store.Upsert(ctx, "docs", []core.VectorRecord{
		record("x", []float32{1, 0, 0}, map[string]string{core.LabelKind: core.RecordKindChunk}),
		record("xy", []float32{1, 1, 0}, map[string]string{core.LabelKind: core.RecordKindChunk}),
		record("y", []float32{0, 1, 0}, map[string]string{core.LabelKind: core.RecordKindParent}),
		record("z", []float32{0, 0, 5}, map[string]string{core.LabelKind: core.RecordKindChunk}),
	}))

	t.Run("ordered by score", func(t *testing.T) {
		hits, err := store.Search(ctx, "docs", []float32{2, 0, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)

		texts := make([]string, len(hits))
		for i, h := range hits {
			labels, ok := h.Metadata.(map[string]string)
			require.True(t, ok)
			texts[i] = labels[core.LabelText]
		}
		assert.Equal(t, "text of x", texts[0])
		assert.Equal(t, "text of xy", texts[1])
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
		assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
	})

	t.Run("k larger than collection", func(t *testing.T) {
		hits, err := store.Search(ctx, "docs", []float32{0, 0, 1}, 50, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 4)
		assert.Equal(t, fmt.Sprint(uint64(core.RecordID("z", "z"))), hits[0].ID)
	})

	t.Run("filter", func(t *testing.T) {
		hits, err := store.Search(ctx, "docs", []float32{0, 1, 0}, 10, storage.Filter{core.LabelKind: core.RecordKindChunk})
		require.NoError(t, err)
		assert.Len(t, hits, 3)
		for _, h := range hits {
			assert.Equal(t, core.RecordKindChunk, h.Metadata.(map[string]string)[core.LabelKind])
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := store.Search(ctx, "docs", []float32{1, 0, 0}, 0, nil)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
		_, err = store.Search(ctx, "docs", []float32{1, 0}, 1, nil)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
		_, err = store.Search(ctx, "missing", []float32{1, 0, 0}, 1, nil)
		assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
	})
}

func TestSearch_DotMetric(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.EnsureCollection(ctx, "dot", 2, storage.MetricDot))
	require.NoError(t, store.Upsert(ctx, "dot", []core.VectorRecord{
		record("small", []float32{1, 0}, nil),
		record("large", []float32{3, 3}, nil),
	}))

	hits, err := store.Search(ctx, "dot", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.InDelta(t, 3.0, hits[0].Score, 1e-6, "dot product favours magnitude")
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(dir, false)
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, "docs", 2, storage.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "docs", []core.VectorRecord{record("a", []float32{1, 0}, nil)}))
	require.NoError(t, store.Close())

	store, err = Open(dir, false)
	require.NoError(t, err)
	defer store.Close()

	count, err := store.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClosedStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "closing twice is harmless")

	_, err = store.Count(context.Background(), "docs")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
