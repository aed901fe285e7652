package memory

import (
	"context"
	"testing"

	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, product string, v ...float32) vectorstore.Record {
	return vectorstore.Record{
		ID:       id,
		Document: document.New(product+" review", product),
		Vector:   v,
	}
}

func TestQueryOrdersByCosine(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()
	require.NoError(t, ix.EnsureCollection(ctx, 2))

	n, err := ix.Upsert(ctx, []vectorstore.Record{
		rec("1", "Blender", 1, 0),
		rec("2", "Kettle", 0, 1),
		rec("3", "Mixer", 0.8, 0.2),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := ix.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Blender", hits[0].ProductName())
	assert.Equal(t, "Mixer", hits[1].ProductName())
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex()
	require.NoError(t, ix.EnsureCollection(ctx, 2))
	assert.Error(t, ix.EnsureCollection(ctx, 3))

	n, err := ix.Upsert(ctx, []vectorstore.Record{rec("1", "Blender", 1, 0), rec("2", "Kettle", 1, 0, 0)})
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	count, _ := ix.Count(ctx)
	assert.Equal(t, 1, count)
}

func TestQueryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewIndex().Query(ctx, []float32{1}, 3)
	assert.ErrorIs(t, err, context.Canceled)
}
