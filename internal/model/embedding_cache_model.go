package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingCacheEntry is the durable tier of the query embedding cache.
// Rows are keyed by model plus a sha256 of the normalized text.
type EmbeddingCacheEntry struct {
	ModelName  string          `gorm:"type:varchar(128);primaryKey"`
	TextHash   string          `gorm:"type:char(64);primaryKey"`
	Text       string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector;not null"`
	InsertedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ExpiresAt  time.Time       `gorm:"not null;index"`
	UseCount   int64           `gorm:"not null;default:0"`
	LastUsedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EmbeddingCacheEntry) TableName() string {
	return "embedding_cache"
}
