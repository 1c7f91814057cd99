package mapper

import (
	"encoding/json"

	"gorm.io/datatypes"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/model"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}
	return &entity.Document{
		Id:           d.Id,
		SourceSystem: d.SourceSystem,
		ExternalId:   d.ExternalId,
		Title:        d.Title,
		Summary:      d.Summary,
		RawMetadata:  decodeJSONObject(d.RawMetadata),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}
	return &model.Document{
		Id:           d.Id,
		SourceSystem: d.SourceSystem,
		ExternalId:   d.ExternalId,
		Title:        d.Title,
		Summary:      d.Summary,
		RawMetadata:  encodeJSONObject(d.RawMetadata),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}

func (m *DocumentMapper) VersionToEntity(v *model.DocumentVersion) *entity.DocumentVersion {
	if v == nil {
		return nil
	}
	return &entity.DocumentVersion{
		Id:         v.Id,
		DocumentId: v.DocumentId,
		IngestedAt: v.IngestedAt,
		SourcePath: v.SourcePath,
		Checksum:   v.Checksum,
		RawPayload: decodeJSONObject(v.RawPayload),
	}
}

func (m *DocumentMapper) VersionToModel(v *entity.DocumentVersion) *model.DocumentVersion {
	if v == nil {
		return nil
	}
	return &model.DocumentVersion{
		Id:         v.Id,
		DocumentId: v.DocumentId,
		IngestedAt: v.IngestedAt,
		SourcePath: v.SourcePath,
		Checksum:   v.Checksum,
		RawPayload: encodeJSONObject(v.RawPayload),
	}
}

// malformed or empty JSON maps to an empty object
func decodeJSONObject(raw datatypes.JSON) map[string]interface{} {
	out := map[string]interface{}{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeJSONObject(v map[string]interface{}) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
