package implementation

import (
	"context"
	"fmt"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/mapper"
	"secondbrain-be/internal/model"
	"secondbrain-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContextReferenceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SegmentMapper
}

func NewContextReferenceRepository(db *gorm.DB) contract.ContextReferenceRepository {
	return &ContextReferenceRepositoryImpl{
		db:     db,
		mapper: mapper.NewSegmentMapper(),
	}
}

func (r *ContextReferenceRepositoryImpl) CreateBulk(ctx context.Context, refs []*entity.ContextReference) error {
	if len(refs) == 0 {
		return nil
	}
	models := make([]*model.SegmentContextRef, len(refs))
	for i, ref := range refs {
		models[i] = r.mapper.ContextRefToModel(ref)
	}

	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "target_segment_id"}, {Name: "source_segment_id"}},
			DoNothing: true,
		}).
		Create(models).Error
	if err != nil {
		return fmt.Errorf("insert context references: %w", err)
	}
	return nil
}

func (r *ContextReferenceRepositoryImpl) FindByTarget(ctx context.Context, targetSegmentId uuid.UUID) ([]*entity.ContextSource, error) {
	var rows []*entity.ContextSource
	err := r.db.WithContext(ctx).
		Table("segment_context_refs AS scr").
		Select(`ds.id AS segment_id,
			d.id AS document_id,
			d.title AS document_title,
			d.source_system,
			ds.source_role,
			ds.content_markdown AS content,
			scr.relevance_score,
			scr.rank,
			scr.search_method,
			COALESCE(scr.search_query, '') AS search_query`).
		Joins("JOIN document_segments ds ON ds.id = scr.source_segment_id").
		Joins("JOIN document_versions dv ON dv.id = ds.document_version_id").
		Joins("JOIN documents d ON d.id = dv.document_id").
		Where("scr.target_segment_id = ?", targetSegmentId).
		Order("scr.rank ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find context references: %w", err)
	}
	return rows, nil
}
