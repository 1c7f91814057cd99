package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Document is one imported or native conversation. Native chats use source_system '2brain'.
type Document struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceSystem string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_documents_source_external,priority:1;index"`
	ExternalId   string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_documents_source_external,priority:2"`
	Title        string         `gorm:"type:text;not null"`
	Summary      *string        `gorm:"type:text"`
	RawMetadata  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index"`

	Versions []DocumentVersion `gorm:"foreignKey:DocumentId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (Document) TableName() string {
	return "documents"
}

type DocumentVersion struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId uuid.UUID      `gorm:"type:uuid;not null;index:idx_document_versions_latest,priority:1"`
	IngestedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_document_versions_latest,priority:2,sort:desc"`
	SourcePath string         `gorm:"type:text;not null"`
	Checksum   string         `gorm:"type:varchar(64);not null"`
	RawPayload datatypes.JSON `gorm:"type:jsonb"`

	Segments []Segment `gorm:"foreignKey:DocumentVersionId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (DocumentVersion) TableName() string {
	return "document_versions"
}
