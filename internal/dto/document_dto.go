package dto

import (
	"time"

	"github.com/google/uuid"
)

type ListDocumentsRequest struct {
	Limit  int `query:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

type DocumentSummaryResponse struct {
	Id           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	SourceSystem string    `json:"source_system"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SegmentCount int       `json:"segment_count"`
	CharCount    int       `json:"char_count"`
}

type DocumentVersionResponse struct {
	Id         uuid.UUID `json:"id"`
	IngestedAt time.Time `json:"ingested_at"`
	SourcePath string    `json:"source_path"`
	Checksum   string    `json:"checksum"`
}

type SegmentResponse struct {
	Id              uuid.UUID  `json:"id"`
	ParentSegmentId *uuid.UUID `json:"parent_segment_id"`
	Sequence        int        `json:"sequence"`
	SourceRole      string     `json:"source_role"`
	SegmentType     string     `json:"segment_type"`
	ContentMarkdown string     `json:"content_markdown"`
	StartedAt       *time.Time `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	EmbeddingStatus string     `json:"embedding_status"`
	IsNoise         bool       `json:"is_noise"`
}

type DocumentViewResponse struct {
	Id           uuid.UUID               `json:"id"`
	SourceSystem string                  `json:"source_system"`
	ExternalId   string                  `json:"external_id"`
	Title        string                  `json:"title"`
	Summary      *string                 `json:"summary"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	RawMetadata  map[string]interface{}  `json:"raw_metadata"`
	Version      DocumentVersionResponse `json:"version"`
	Segments     []SegmentResponse       `json:"segments"`
}
