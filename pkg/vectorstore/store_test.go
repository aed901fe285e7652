package vectorstore_test

import (
	"context"
	"errors"
	"testing"

	"review-rag-be/pkg/embedding/embeddingtest"
	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/ragerr"
	"review-rag-be/pkg/vectorstore"
	"review-rag-be/pkg/vectorstore/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocs() []document.Document {
	return []document.Document{
		document.New("The blender crushes ice easily and is very powerful", "Philips Blender"),
		document.New("Headphones have deep bass and long battery life", "BoAt Rockerz 255"),
		document.New("The kettle boils water in two minutes", "Prestige Kettle"),
		document.New("Blender jar leaks after a month of use", "Philips Blender"),
		document.New("Mouse scroll wheel stopped working", "Logitech Mouse"),
	}
}

func TestSimilaritySearchEmptyStore(t *testing.T) {
	s := vectorstore.New(embeddingtest.NewHashingEmbedder(64), memory.NewIndex())

	docs, err := s.SimilaritySearch(context.Background(), "Is this blender good?", 3)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestSimilaritySearchNeverExceedsK(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.New(embeddingtest.NewHashingEmbedder(64), memory.NewIndex(), vectorstore.WithBatchSize(2))
	require.NoError(t, s.Upsert(ctx, sampleDocs()))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	for _, k := range []int{0, 1, 3, 10} {
		docs, err := s.SimilaritySearch(ctx, "blender", k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(docs), k)
	}
}

func TestRoundTripExactContentIsTopHit(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.New(embeddingtest.NewHashingEmbedder(128), memory.NewIndex())
	docs := sampleDocs()
	require.NoError(t, s.Upsert(ctx, docs))

	for _, d := range docs {
		hits, err := s.SimilaritySearchWithScore(ctx, d.Content, 3)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, d.Content, hits[0].Content)
		assert.Equal(t, d.ProductName(), hits[0].ProductName())
		assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	}
}

func TestUpsertReportsProgress(t *testing.T) {
	var seen [][2]int
	s := vectorstore.New(embeddingtest.NewHashingEmbedder(32), memory.NewIndex(),
		vectorstore.WithBatchSize(2),
		vectorstore.WithProgress(func(done, total int) { seen = append(seen, [2]int{done, total}) }),
	)

	require.NoError(t, s.Upsert(context.Background(), sampleDocs()))
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, seen)
}

func TestUpsertEmbeddingFailureIsConnectionError(t *testing.T) {
	emb := embeddingtest.NewHashingEmbedder(32)
	emb.Err = errors.New("dial tcp: connection refused")
	s := vectorstore.New(emb, memory.NewIndex())

	err := s.Upsert(context.Background(), sampleDocs())
	assert.True(t, errors.Is(err, ragerr.ErrConnection), "got %v", err)
}

type rejectingIndex struct {
	*memory.Index
	acceptPerBatch int
	unavailable    bool
}

func (r *rejectingIndex) Upsert(ctx context.Context, records []vectorstore.Record) (int, error) {
	if r.unavailable {
		return 0, vectorstore.ErrUnavailable
	}
	n, _ := r.Index.Upsert(ctx, records[:r.acceptPerBatch])
	return n, errors.New("write rejected")
}

func TestUpsertPartialRejectionIsIngestionError(t *testing.T) {
	ix := &rejectingIndex{Index: memory.NewIndex(), acceptPerBatch: 1}
	s := vectorstore.New(embeddingtest.NewHashingEmbedder(32), ix, vectorstore.WithBatchSize(3))

	err := s.Upsert(context.Background(), sampleDocs())
	require.True(t, errors.Is(err, ragerr.ErrIngestion), "got %v", err)

	var ie *ragerr.IngestionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Accepted)
	assert.Equal(t, 5, ie.Total)
}

func TestUpsertUnavailableIsConnectionError(t *testing.T) {
	ix := &rejectingIndex{Index: memory.NewIndex(), unavailable: true}
	s := vectorstore.New(embeddingtest.NewHashingEmbedder(32), ix)

	err := s.Upsert(context.Background(), sampleDocs())
	assert.True(t, errors.Is(err, ragerr.ErrConnection), "got %v", err)
}

func TestSearchFailureIsRetrievalError(t *testing.T) {
	emb := embeddingtest.NewHashingEmbedder(32)
	emb.Err = errors.New("boom")
	s := vectorstore.New(emb, memory.NewIndex())

	_, err := s.SimilaritySearch(context.Background(), "q", 3)
	assert.True(t, errors.Is(err, ragerr.ErrRetrieval), "got %v", err)
}

func TestSearchCancelledIsTimeout(t *testing.T) {
	s := vectorstore.New(embeddingtest.NewHashingEmbedder(32), memory.NewIndex())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SimilaritySearch(ctx, "q", 3)
	assert.True(t, errors.Is(err, ragerr.ErrTimeout), "got %v", err)
}
