package implementation

import (
	"context"
	"fmt"
	"time"

	"secondbrain-be/internal/model"
	"secondbrain-be/internal/repository/contract"
	"secondbrain-be/pkg/embedcache"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingCacheRepositoryImpl is the postgres flavour of the durable cache tier.
type EmbeddingCacheRepositoryImpl struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEmbeddingCacheRepository(db *gorm.DB) contract.EmbeddingCacheRepository {
	return &EmbeddingCacheRepositoryImpl{
		db:  db,
		now: time.Now,
	}
}

// Get reads and bumps usage in one statement; expired rows are misses.
func (r *EmbeddingCacheRepositoryImpl) Get(ctx context.Context, key embedcache.Key) ([]float32, bool, error) {
	now := r.now().UTC()
	var rows []model.EmbeddingCacheEntry
	err := r.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "embedding"}}}).
		Where("model_name = ? AND text_hash = ? AND expires_at > ?", key.Model, key.Hash(), now).
		Updates(map[string]interface{}{
			"use_count":    gorm.Expr("use_count + 1"),
			"last_used_at": now,
		}).Error
	if err != nil {
		return nil, false, fmt.Errorf("read embedding cache: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0].Embedding.Slice(), true, nil
}

func (r *EmbeddingCacheRepositoryImpl) Put(ctx context.Context, key embedcache.Key, values []float32, ttl time.Duration) error {
	now := r.now().UTC()
	entry := &model.EmbeddingCacheEntry{
		ModelName:  key.Model,
		TextHash:   key.Hash(),
		Text:       key.Text,
		Embedding:  pgvector.NewVector(values),
		InsertedAt: now,
		ExpiresAt:  now.Add(ttl),
		UseCount:   1,
		LastUsedAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "model_name"}, {Name: "text_hash"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"text":         gorm.Expr("EXCLUDED.text"),
				"embedding":    gorm.Expr("EXCLUDED.embedding"),
				"inserted_at":  gorm.Expr("EXCLUDED.inserted_at"),
				"expires_at":   gorm.Expr("EXCLUDED.expires_at"),
				"use_count":    gorm.Expr("embedding_cache.use_count + 1"),
				"last_used_at": gorm.Expr("EXCLUDED.last_used_at"),
			}),
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}
	return nil
}

func (r *EmbeddingCacheRepositoryImpl) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", r.now().UTC()).
		Delete(&model.EmbeddingCacheEntry{})
	return res.RowsAffected, res.Error
}
