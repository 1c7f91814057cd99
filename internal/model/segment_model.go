package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const (
	EmbeddingStatusPending      = "pending"
	EmbeddingStatusReady        = "ready"
	EmbeddingStatusFailed       = "failed"
	EmbeddingStatusSkippedNoise = "skipped_noise"
)

// Segment is one message of a document version. Content is immutable; only the
// embedding and its status change after insert.
type Segment struct {
	Id                 uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentVersionId  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_segments_version_sequence,priority:1"`
	ParentSegmentId    *uuid.UUID `gorm:"type:uuid"`
	Sequence           int        `gorm:"not null;uniqueIndex:idx_segments_version_sequence,priority:2"`
	SourceRole         string     `gorm:"type:varchar(16);not null;index"`
	SegmentType        string     `gorm:"type:varchar(32);not null;default:'message'"`
	ContentMarkdown    string     `gorm:"type:text;not null"`
	ContentPlaintext   string     `gorm:"type:tsvector;->"` // written with to_tsvector at insert
	StartedAt          *time.Time `gorm:"index"`
	EndedAt            *time.Time
	QualityScore       float64          `gorm:"not null;default:1"`
	IsNoise            bool             `gorm:"not null;default:false"`
	EmbeddingStatus    string           `gorm:"type:varchar(16);not null;default:'pending';index"`
	Embedding          *pgvector.Vector `gorm:"type:vector(1536)"`
	EmbeddingUpdatedAt *time.Time
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Segment) TableName() string {
	return "document_segments"
}

// SegmentContextRef records which passage informed which assistant reply.
type SegmentContextRef struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TargetSegmentId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_context_refs_target_source,priority:1"`
	SourceSegmentId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_context_refs_target_source,priority:2;index"`
	RelevanceScore  float64
	Rank            int
	SearchMethod    string    `gorm:"type:varchar(16);not null;default:'hybrid'"`
	SearchQuery     *string   `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Target Segment `gorm:"foreignKey:TargetSegmentId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Source Segment `gorm:"foreignKey:SourceSegmentId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (SegmentContextRef) TableName() string {
	return "segment_context_refs"
}
