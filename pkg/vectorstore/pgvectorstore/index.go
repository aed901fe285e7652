package pgvectorstore

import (
	"context"
	"errors"
	"fmt"
	"net"

	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/vectorstore"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Index stores review embeddings in Postgres with the pgvector extension.
// namespace, when set, is used as the Postgres schema.
type Index struct {
	db         *gorm.DB
	table      string
	namespace  string
	collection string
}

var _ vectorstore.Index = (*Index)(nil)

func NewIndex(db *gorm.DB, namespace, collection string) *Index {
	table := ReviewEmbedding{}.TableName()
	if namespace != "" {
		table = namespace + "." + table
	}
	return &Index{
		db:         db,
		table:      table,
		namespace:  namespace,
		collection: collection,
	}
}

func (ix *Index) EnsureCollection(ctx context.Context, dim int) error {
	db := ix.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return wrapDBError("create extension", err)
	}
	if ix.namespace != "" {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", ix.namespace)).Error; err != nil {
			return wrapDBError("create schema", err)
		}
	}
	if err := db.Table(ix.table).AutoMigrate(&ReviewEmbedding{}); err != nil {
		return wrapDBError("migrate review_embeddings", err)
	}
	return nil
}

func (ix *Index) Upsert(ctx context.Context, records []vectorstore.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	models := make([]*ReviewEmbedding, len(records))
	for i, r := range records {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			id = uuid.New()
		}
		meta := datatypes.JSONMap{}
		for k, v := range r.Document.Metadata {
			meta[k] = v
		}
		models[i] = &ReviewEmbedding{
			Id:             id,
			Collection:     ix.collection,
			Content:        r.Document.Content,
			Metadata:       meta,
			EmbeddingValue: pgvector.NewVector(r.Vector),
		}
	}

	// One transaction per batch: either every row lands or none does.
	err := ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(ix.table).CreateInBatches(models, 100).Error
	})
	if err != nil {
		return 0, wrapDBError("insert review_embeddings", err)
	}
	return len(models), nil
}

type scoredRow struct {
	ReviewEmbedding
	Similarity float64
}

func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.ScoredDocument, error) {
	queryVector := pgvector.NewVector(vector)

	var rows []scoredRow
	err := ix.db.WithContext(ctx).
		Table(ix.table).
		Select("*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("collection = ?", ix.collection).
		Order(gorm.Expr("embedding_value <=> ?", queryVector)).
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		// nothing has been ingested yet
		if isUndefinedTable(err) {
			return []vectorstore.ScoredDocument{}, nil
		}
		return nil, wrapDBError("search review_embeddings", err)
	}

	hits := make([]vectorstore.ScoredDocument, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, vectorstore.ScoredDocument{
			Document: toDocument(row.ReviewEmbedding),
			Score:    float32(row.Similarity),
		})
	}
	return hits, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int64
	err := ix.db.WithContext(ctx).Table(ix.table).Where("collection = ?", ix.collection).Count(&n).Error
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, wrapDBError("count review_embeddings", err)
	}
	return int(n), nil
}

// DeleteCollection removes every row of this collection.
func (ix *Index) DeleteCollection(ctx context.Context) error {
	err := ix.db.WithContext(ctx).Table(ix.table).Where("collection = ?", ix.collection).Delete(&ReviewEmbedding{}).Error
	return wrapDBError("delete collection", err)
}

func (ix *Index) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDocument(m ReviewEmbedding) document.Document {
	meta := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		if s, ok := v.(string); ok {
			meta[k] = s
		} else {
			meta[k] = fmt.Sprint(v)
		}
	}
	return document.Document{Content: m.Content, Metadata: meta}
}

const codeUndefinedTable = "42P01"

// isUndefinedTable reports whether err is Postgres 42P01, raised before the first EnsureCollection.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}

// wrapDBError tags network level failures with vectorstore.ErrUnavailable.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var connErr *pgconn.ConnectError
	if errors.As(err, &netErr) || errors.As(err, &connErr) {
		return fmt.Errorf("%s: %w: %w", op, vectorstore.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
