package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"review-rag-be/pkg/embedding"
	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/ragerr"

	"github.com/google/uuid"
)

// Store is the handle the chain retrieves from and the ingestion service loads into.
type Store interface {
	Upsert(ctx context.Context, docs []document.Document) error
	SimilaritySearch(ctx context.Context, query string, k int) ([]document.Document, error)
}

// Record is one embedded document as handed to an Index.
type Record struct {
	ID       string
	Document document.Document
	Vector   []float32
}

// ScoredDocument is a search hit; higher Score is more relevant.
type ScoredDocument struct {
	document.Document
	Score float32
}

// Index is a vector backend (memory, pgvector, qdrant). It never embeds text itself.
type Index interface {
	// EnsureCollection creates the collection for vectors of size dim if it is missing.
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert returns how many records were accepted, even on error.
	Upsert(ctx context.Context, records []Record) (int, error)
	// Query returns at most k hits in descending score order.
	Query(ctx context.Context, vector []float32, k int) ([]ScoredDocument, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// ErrUnavailable marks backend errors caused by an unreachable server.
var ErrUnavailable = errors.New("vector store unavailable")

// EmbeddingStore pairs an Embedder with an Index to satisfy Store.
type EmbeddingStore struct {
	embedder  embedding.Embedder
	index     Index
	batchSize int
	progress  func(done, total int)
}

var _ Store = (*EmbeddingStore)(nil)

type Option func(*EmbeddingStore)

// WithBatchSize bounds how many documents go into one embed + upsert round trip.
func WithBatchSize(n int) Option {
	return func(s *EmbeddingStore) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithProgress registers a callback invoked after every upserted batch.
func WithProgress(fn func(done, total int)) Option {
	return func(s *EmbeddingStore) {
		s.progress = fn
	}
}

func New(embedder embedding.Embedder, index Index, opts ...Option) *EmbeddingStore {
	s := &EmbeddingStore{
		embedder:  embedder,
		index:     index,
		batchSize: 32,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EmbeddingStore) Index() Index {
	return s.index
}

// WithOptions returns a copy sharing the same embedder and index.
func (s *EmbeddingStore) WithOptions(opts ...Option) *EmbeddingStore {
	cp := *s
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Upsert embeds docs in batches and writes them. Embedding or connectivity
// failures are ConnectionErrors; rejected writes are IngestionErrors that
// report how many documents made it in.
func (s *EmbeddingStore) Upsert(ctx context.Context, docs []document.Document) error {
	const op = "vectorstore.Upsert"
	total := len(docs)
	if total == 0 {
		return nil
	}

	accepted := 0
	ensured := false
	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return ragerr.New(ragerr.KindConnection, op, fmt.Errorf("embed batch %d-%d: %w", start, end, err))
		}
		if len(vectors) != len(batch) {
			return ragerr.New(ragerr.KindIngestion, op, &embedding.CountMismatchError{Want: len(batch), Got: len(vectors)})
		}

		if !ensured {
			if err := s.index.EnsureCollection(ctx, len(vectors[0])); err != nil {
				return classifyBackend(op, err)
			}
			ensured = true
		}

		records := make([]Record, len(batch))
		for i, d := range batch {
			records[i] = Record{ID: uuid.NewString(), Document: d, Vector: vectors[i]}
		}

		n, err := s.index.Upsert(ctx, records)
		accepted += n
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return classifyBackend(op, err)
			}
			return ragerr.New(ragerr.KindIngestion, op, &ragerr.IngestionError{Accepted: accepted, Total: total, Err: err})
		}
		if n < len(records) {
			return ragerr.New(ragerr.KindIngestion, op, &ragerr.IngestionError{
				Accepted: accepted,
				Total:    total,
				Err:      fmt.Errorf("backend accepted %d of %d records in batch", n, len(records)),
			})
		}

		if s.progress != nil {
			s.progress(end, total)
		}
	}
	return nil
}

// SimilaritySearch embeds query and returns at most k documents, most relevant first.
// An empty index yields an empty slice.
func (s *EmbeddingStore) SimilaritySearch(ctx context.Context, query string, k int) ([]document.Document, error) {
	scored, err := s.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

func (s *EmbeddingStore) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	const op = "vectorstore.SimilaritySearch"
	if k <= 0 {
		return []ScoredDocument{}, nil
	}

	vector, err := embedding.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, ragerr.New(ragerr.KindRetrieval, op, fmt.Errorf("embed query: %w", err))
	}

	hits, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return nil, ragerr.New(ragerr.KindRetrieval, op, err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	if hits == nil {
		hits = []ScoredDocument{}
	}
	return hits, nil
}

func (s *EmbeddingStore) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

func (s *EmbeddingStore) Close() error {
	return s.index.Close()
}

func classifyBackend(op string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return ragerr.New(ragerr.KindConnection, op, err)
	}
	return ragerr.New(ragerr.KindIngestion, op, err)
}
