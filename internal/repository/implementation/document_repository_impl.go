package implementation

import (
	"context"
	"encoding/json"
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
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *entity.Document) error {
	m := r.mapper.ToModel(document)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	*document = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var m model.Document
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Document{}).Count(&count).Error
	return count, err
}

const documentSummariesSQL = `
SELECT
    d.id, d.title, d.source_system, d.created_at, d.updated_at,
    COUNT(ds.id) AS segment_count,
    COALESCE(SUM(char_length(ds.content_markdown)), 0) AS char_count
FROM documents d
LEFT JOIN LATERAL (
    SELECT dv.id FROM document_versions dv
    WHERE dv.document_id = d.id
    ORDER BY dv.ingested_at DESC
    LIMIT 1
) latest ON TRUE
LEFT JOIN document_segments ds ON ds.document_version_id = latest.id
GROUP BY d.id
ORDER BY d.updated_at DESC
LIMIT ? OFFSET ?`

func (r *DocumentRepositoryImpl) ListSummaries(ctx context.Context, limit, offset int) ([]*entity.DocumentSummary, error) {
	var rows []*entity.DocumentSummary
	if err := r.db.WithContext(ctx).Raw(documentSummariesSQL, limit, offset).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return rows, nil
}

type conversationRow struct {
	Id           uuid.UUID
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RawMetadata  datatypes.JSON
	MessageCount int
}

func (r *DocumentRepositoryImpl) conversationQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("documents AS d").
		Select("d.id, d.title, d.created_at, d.updated_at, d.raw_metadata, COUNT(ds.id) AS message_count").
		Joins("LEFT JOIN document_versions dv ON dv.document_id = d.id").
		Joins("LEFT JOIN document_segments ds ON ds.document_version_id = dv.id").
		Where("d.source_system = ?", entity.NativeSourceSystem).
		Group("d.id")
}

func (r *DocumentRepositoryImpl) ListConversations(ctx context.Context, limit, offset int) ([]*entity.Conversation, error) {
	var rows []conversationRow
	query := r.applySpecifications(r.conversationQuery(ctx),
		specification.OrderBy{Field: "d.updated_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	err := query.Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	conversations := make([]*entity.Conversation, len(rows))
	for i := range rows {
		conversations[i] = toConversation(&rows[i])
	}
	return conversations, nil
}

func (r *DocumentRepositoryImpl) FindConversation(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	var rows []conversationRow
	if err := r.conversationQuery(ctx).Where("d.id = ?", id).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return toConversation(&rows[0]), nil
}

func toConversation(row *conversationRow) *entity.Conversation {
	c := &entity.Conversation{
		Id:           row.Id,
		Title:        row.Title,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		MessageCount: row.MessageCount,
	}
	var meta struct {
		ChatConfig *entity.ChatConfig `json:"chat_config"`
	}
	if len(row.RawMetadata) > 0 && json.Unmarshal(row.RawMetadata, &meta) == nil {
		c.Config = meta.ChatConfig
	}
	return c
}

func (r *DocumentRepositoryImpl) UpdateTitle(ctx context.Context, id uuid.UUID, title string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ? AND source_system = ?", id, entity.NativeSourceSystem).
		Updates(map[string]interface{}{"title": title, "updated_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("update title: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *DocumentRepositoryImpl) MergeMetadata(ctx context.Context, id uuid.UUID, patch map[string]interface{}) (bool, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return false, fmt.Errorf("encode metadata: %w", err)
	}
	res := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("raw_metadata", gorm.Expr("COALESCE(raw_metadata, '{}'::jsonb) || ?::jsonb", string(payload)))
	if res.Error != nil {
		return false, fmt.Errorf("merge metadata: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *DocumentRepositoryImpl) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

func (r *DocumentRepositoryImpl) DeleteConversation(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND source_system = ?", id, entity.NativeSourceSystem).
		Delete(&model.Document{})
	if res.Error != nil {
		return false, fmt.Errorf("delete conversation: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

const documentMetaSQL = `
SELECT
    d.id AS document_id,
    d.title,
    d.source_system,
    d.updated_at,
    COUNT(ds.id) FILTER (WHERE ds.is_noise = FALSE AND ds.embedding_status = 'ready') AS total_segments
FROM documents d
LEFT JOIN LATERAL (
    SELECT dv.id FROM document_versions dv
    WHERE dv.document_id = d.id
    ORDER BY dv.ingested_at DESC
    LIMIT 1
) latest ON TRUE
LEFT JOIN document_segments ds ON ds.document_version_id = latest.id
WHERE d.id IN ?
GROUP BY d.id`

func (r *DocumentRepositoryImpl) Meta(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]retrieval.DocumentMeta, error) {
	out := make(map[uuid.UUID]retrieval.DocumentMeta, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		DocumentId    uuid.UUID
		Title         string
		SourceSystem  string
		UpdatedAt     time.Time
		TotalSegments int
	}
	if err := r.db.WithContext(ctx).Raw(documentMetaSQL, ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("document meta: %w", err)
	}
	for _, row := range rows {
		out[row.DocumentId] = retrieval.DocumentMeta{
			Title:         row.Title,
			SourceSystem:  row.SourceSystem,
			TotalSegments: row.TotalSegments,
			UpdatedAt:     row.UpdatedAt,
		}
	}
	return out, nil
}

type DocumentVersionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentVersionRepository(db *gorm.DB) contract.DocumentVersionRepository {
	return &DocumentVersionRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentVersionRepositoryImpl) Create(ctx context.Context, version *entity.DocumentVersion) error {
	m := r.mapper.VersionToModel(version)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create document version: %w", err)
	}
	*version = *r.mapper.VersionToEntity(m)
	return nil
}

func (r *DocumentVersionRepositoryImpl) FindLatest(ctx context.Context, documentId uuid.UUID) (*entity.DocumentVersion, error) {
	var m model.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentId).
		Order("ingested_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.VersionToEntity(&m), nil
}
