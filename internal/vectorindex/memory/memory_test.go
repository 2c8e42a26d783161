package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-rag/internal/models"
	"mini-rag/internal/vectorindex"
)

func newIndex(t *testing.T, dim int) (*Admin, vectorindex.Index) {
	t.Helper()

	admin, err := NewAdmin(Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, admin.CreateIndex(ctx, vectorindex.Spec{Name: "test", Dimension: dim, Metric: vectorindex.MetricCosine}))

	idx, err := admin.Index(ctx, "test")
	require.NoError(t, err)
	return admin, idx
}

func record(id string, chunkID int, text string, values ...float32) models.VectorRecord {
	return models.VectorRecord{
		ID:       id,
		Values:   values,
		Metadata: models.Chunk{Text: text, Source: "doc.pdf", ChunkID: chunkID},
	}
}

func TestIndex_QueryEmpty(t *testing.T) {
	_, idx := newIndex(t, 2)

	matches, err := idx.Query(context.Background(), []float32{1, 0}, 10)

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_UpsertAndQuery(t *testing.T) {
	_, idx := newIndex(t, 2)
	ctx := context.Background()

	n, err := idx.Upsert(ctx, []models.VectorRecord{
		record("id-0", 0, "x axis", 1, 0),
		record("id-1", 1, "y axis", 0, 1),
		record("id-2", 2, "diagonal", 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := idx.Query(ctx, []float32{1, 0.1}, 10)

	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "id-0", matches[0].ID)
	assert.Equal(t, models.Chunk{Text: "x axis", Source: "doc.pdf", ChunkID: 0}, matches[0].Metadata)
	assert.Equal(t, "id-2", matches[1].ID)
	assert.Equal(t, "id-1", matches[2].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestIndex_UpsertOverwritesByID(t *testing.T) {
	_, idx := newIndex(t, 2)
	ctx := context.Background()

	_, err := idx.Upsert(ctx, []models.VectorRecord{record("id-0", 0, "first", 1, 0)})
	require.NoError(t, err)
	_, err = idx.Upsert(ctx, []models.VectorRecord{record("id-0", 0, "second", 0, 1)})
	require.NoError(t, err)

	matches, err := idx.Query(ctx, []float32{0, 1}, 10)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "second", matches[0].Metadata.Text)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	_, idx := newIndex(t, 3)
	ctx := context.Background()

	_, err := idx.Upsert(ctx, []models.VectorRecord{record("id-0", 0, "short", 1, 0)})
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)

	_, err = idx.Query(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)
}

func TestAdmin_Lifecycle(t *testing.T) {
	admin, _ := newIndex(t, 4)
	ctx := context.Background()

	names, err := admin.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, names)

	desc, err := admin.DescribeIndex(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, 4, desc.Dimension)
	assert.True(t, desc.Ready)

	require.NoError(t, admin.DeleteIndex(ctx, "test"))

	names, err = admin.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = admin.DescribeIndex(ctx, "test")
	assert.ErrorIs(t, err, vectorindex.ErrIndexNotFound)

	_, err = admin.Index(ctx, "test")
	assert.ErrorIs(t, err, vectorindex.ErrIndexNotFound)
}

func TestAdmin_RejectsOtherMetrics(t *testing.T) {
	admin, err := NewAdmin(Config{})
	require.NoError(t, err)

	err = admin.CreateIndex(context.Background(), vectorindex.Spec{Name: "dot", Dimension: 2, Metric: vectorindex.MetricDotProduct})

	assert.Error(t, err)
}

func TestAdmin_PersistentSpecs(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	admin, err := NewAdmin(Config{Persistent: true, Path: dir})
	require.NoError(t, err)
	require.NoError(t, admin.CreateIndex(ctx, vectorindex.Spec{Name: "kept", Dimension: 3, Metric: vectorindex.MetricCosine}))

	idx, err := admin.Index(ctx, "kept")
	require.NoError(t, err)
	_, err = idx.Upsert(ctx, []models.VectorRecord{record("id-0", 0, "persisted", 1, 0, 0)})
	require.NoError(t, err)

	reopened, err := NewAdmin(Config{Persistent: true, Path: dir})
	require.NoError(t, err)

	desc, err := reopened.DescribeIndex(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, 3, desc.Dimension)

	idx, err = reopened.Index(ctx, "kept")
	require.NoError(t, err)
	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "persisted", matches[0].Metadata.Text)
}
