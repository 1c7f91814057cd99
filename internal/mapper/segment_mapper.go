package mapper

import (
	"github.com/pgvector/pgvector-go"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/model"
)

type SegmentMapper struct{}

func NewSegmentMapper() *SegmentMapper {
	return &SegmentMapper{}
}

func (m *SegmentMapper) ToEntity(s *model.Segment) *entity.Segment {
	if s == nil {
		return nil
	}
	var embedding []float32
	if s.Embedding != nil {
		embedding = s.Embedding.Slice()
	}
	return &entity.Segment{
		Id:                 s.Id,
		DocumentVersionId:  s.DocumentVersionId,
		ParentSegmentId:    s.ParentSegmentId,
		Sequence:           s.Sequence,
		SourceRole:         s.SourceRole,
		SegmentType:        s.SegmentType,
		ContentMarkdown:    s.ContentMarkdown,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		QualityScore:       s.QualityScore,
		IsNoise:            s.IsNoise,
		EmbeddingStatus:    s.EmbeddingStatus,
		Embedding:          embedding,
		EmbeddingUpdatedAt: s.EmbeddingUpdatedAt,
		CreatedAt:          s.CreatedAt,
	}
}

func (m *SegmentMapper) ToModel(s *entity.Segment) *model.Segment {
	if s == nil {
		return nil
	}
	var embedding *pgvector.Vector
	if len(s.Embedding) > 0 {
		v := pgvector.NewVector(s.Embedding)
		embedding = &v
	}
	return &model.Segment{
		Id:                 s.Id,
		DocumentVersionId:  s.DocumentVersionId,
		ParentSegmentId:    s.ParentSegmentId,
		Sequence:           s.Sequence,
		SourceRole:         s.SourceRole,
		SegmentType:        s.SegmentType,
		ContentMarkdown:    s.ContentMarkdown,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		QualityScore:       s.QualityScore,
		IsNoise:            s.IsNoise,
		EmbeddingStatus:    s.EmbeddingStatus,
		Embedding:          embedding,
		EmbeddingUpdatedAt: s.EmbeddingUpdatedAt,
		CreatedAt:          s.CreatedAt,
	}
}

func (m *SegmentMapper) ToEntities(segments []*model.Segment) []*entity.Segment {
	entities := make([]*entity.Segment, len(segments))
	for i, s := range segments {
		entities[i] = m.ToEntity(s)
	}
	return entities
}

func (m *SegmentMapper) ToMessage(s *model.Segment) *entity.ChatMessage {
	return &entity.ChatMessage{
		SegmentId: s.Id,
		Role:      s.SourceRole,
		Content:   s.ContentMarkdown,
		CreatedAt: s.StartedAt,
	}
}

func (m *SegmentMapper) ContextRefToModel(r *entity.ContextReference) *model.SegmentContextRef {
	var query *string
	if r.SearchQuery != "" {
		q := r.SearchQuery
		query = &q
	}
	method := r.SearchMethod
	if method == "" {
		method = "hybrid"
	}
	return &model.SegmentContextRef{
		Id:              r.Id,
		TargetSegmentId: r.TargetSegmentId,
		SourceSegmentId: r.SourceSegmentId,
		RelevanceScore:  r.RelevanceScore,
		Rank:            r.Rank,
		SearchMethod:    method,
		SearchQuery:     query,
		CreatedAt:       r.CreatedAt,
	}
}
