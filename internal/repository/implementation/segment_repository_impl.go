package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/mapper"
	"secondbrain-be/internal/model"
	"secondbrain-be/internal/repository/contract"
	"secondbrain-be/internal/repository/specification"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SegmentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SegmentMapper
}

func NewSegmentRepository(db *gorm.DB) contract.SegmentRepository {
	return &SegmentRepositoryImpl{
		db:     db,
		mapper: mapper.NewSegmentMapper(),
	}
}

func (r *SegmentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// content_plaintext has no gorm write path, so the insert is raw.
const appendMessageSQL = `
INSERT INTO document_segments (
    document_version_id, sequence, source_role, segment_type,
    content_markdown, content_plaintext, started_at, ended_at,
    quality_score, is_noise, embedding_status
)
SELECT ?::uuid, COALESCE(MAX(sequence), 0) + 1, ?::varchar, 'message',
       ?::text, to_tsvector('english', ?::text), ?::timestamptz, ?::timestamptz,
       1.0, FALSE, ?::varchar
FROM document_segments
WHERE document_version_id = ?
RETURNING id, sequence, created_at`

func (r *SegmentRepositoryImpl) AppendMessage(ctx context.Context, versionId uuid.UUID, role, content string, at time.Time) (*entity.Segment, error) {
	var row struct {
		Id        uuid.UUID
		Sequence  int
		CreatedAt time.Time
	}
	err := r.db.WithContext(ctx).
		Raw(appendMessageSQL, versionId, role, content, content, at, at, model.EmbeddingStatusPending, versionId).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	startedAt := at
	endedAt := at
	return &entity.Segment{
		Id:                row.Id,
		DocumentVersionId: versionId,
		Sequence:          row.Sequence,
		SourceRole:        role,
		SegmentType:       "message",
		ContentMarkdown:   content,
		StartedAt:         &startedAt,
		EndedAt:           &endedAt,
		QualityScore:      1.0,
		EmbeddingStatus:   model.EmbeddingStatusPending,
		CreatedAt:         row.CreatedAt,
	}, nil
}

func (r *SegmentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Segment, error) {
	var m model.Segment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SegmentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Segment, error) {
	var models []*model.Segment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SegmentRepositoryImpl) FindMessages(ctx context.Context, documentId uuid.UUID) ([]*entity.ChatMessage, error) {
	var models []*model.Segment
	err := r.db.WithContext(ctx).
		Select("document_segments.id, document_segments.source_role, document_segments.content_markdown, document_segments.started_at").
		Joins("JOIN document_versions dv ON dv.id = document_segments.document_version_id").
		Where("dv.document_id = ?", documentId).
		Order("document_segments.sequence ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}

	messages := make([]*entity.ChatMessage, len(models))
	for i, m := range models {
		messages[i] = r.mapper.ToMessage(m)
	}
	return messages, nil
}

const fetchSegmentsSQL = `
SELECT
    ds.id AS segment_id,
    d.id AS document_id,
    d.title AS document_title,
    d.source_system,
    ds.source_role AS role,
    ds.content_markdown AS content,
    ds.started_at
FROM document_segments ds
JOIN document_versions dv ON dv.id = ds.document_version_id
JOIN documents d ON d.id = dv.document_id
WHERE ds.id IN ?`

func (r *SegmentRepositoryImpl) FetchSegments(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]retrieval.SegmentDetail, error) {
	out := make(map[uuid.UUID]retrieval.SegmentDetail, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []retrieval.SegmentDetail
	if err := r.db.WithContext(ctx).Raw(fetchSegmentsSQL, ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch segments: %w", err)
	}
	for _, row := range rows {
		out[row.SegmentID] = row
	}
	return out, nil
}

const fetchMetaSQL = `
WITH q AS (
    SELECT CASE
        WHEN NULLIF(TRIM(?::text), '') IS NULL THEN NULL
        ELSE plainto_tsquery('english', ?::text)
    END AS ts_query
)
SELECT
    ds.id AS segment_id,
    dv.document_id,
    ds.sequence,
    ds.source_role AS role,
    CASE
        WHEN q.ts_query IS NULL THEN LEFT(ds.content_markdown, 280)
        ELSE ts_headline('english', ds.content_markdown, q.ts_query)
    END AS snippet
FROM document_segments ds
CROSS JOIN q
JOIN document_versions dv ON dv.id = ds.document_version_id
WHERE ds.id IN ?`

func (r *SegmentRepositoryImpl) FetchMeta(ctx context.Context, ids []uuid.UUID, query string) (map[uuid.UUID]retrieval.SegmentMeta, error) {
	out := make(map[uuid.UUID]retrieval.SegmentMeta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []retrieval.SegmentMeta
	if err := r.db.WithContext(ctx).Raw(fetchMetaSQL, query, query, ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch segment meta: %w", err)
	}
	for _, row := range rows {
		out[row.SegmentID] = row
	}
	return out, nil
}

func (r *SegmentRepositoryImpl) ClaimPending(ctx context.Context, limit int) ([]*entity.Segment, error) {
	var models []*model.Segment
	err := r.db.WithContext(ctx).
		Select("id, document_version_id, sequence, source_role, content_markdown, embedding_status").
		Where("embedding_status = ?", model.EmbeddingStatusPending).
		Where("content_markdown IS NOT NULL AND content_markdown <> ''").
		Order("created_at ASC").
		Limit(limit).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("claim pending segments: %w", err)
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SegmentRepositoryImpl) MarkReady(ctx context.Context, id uuid.UUID, embedding []float32, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Segment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"embedding":            pgvector.NewVector(embedding),
			"embedding_status":     model.EmbeddingStatusReady,
			"embedding_updated_at": at,
		}).Error
}

func (r *SegmentRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Segment{}).
		Where("id = ?", id).
		Update("embedding_status", model.EmbeddingStatusFailed).Error
}
