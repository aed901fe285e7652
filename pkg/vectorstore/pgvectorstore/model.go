package pgvectorstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// ReviewEmbedding is one stored review with its embedding. The vector column is
// left unsized so any embedding model can be used; Collection partitions rows.
type ReviewEmbedding struct {
	Id             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Collection     string            `gorm:"type:varchar(255);not null;index"`
	Content        string            `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	EmbeddingValue pgvector.Vector   `gorm:"type:vector"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
}

func (ReviewEmbedding) TableName() string {
	return "review_embeddings"
}
