package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Segment struct {
	Id                 uuid.UUID
	DocumentVersionId  uuid.UUID
	ParentSegmentId    *uuid.UUID
	Sequence           int
	SourceRole         string
	SegmentType        string
	ContentMarkdown    string
	StartedAt          *time.Time
	EndedAt            *time.Time
	QualityScore       float64
	IsNoise            bool
	EmbeddingStatus    string
	Embedding          []float32
	EmbeddingUpdatedAt *time.Time
	CreatedAt          time.Time
}

// ContextReference links an assistant reply (target) to a passage used to write it (source).
type ContextReference struct {
	Id              uuid.UUID
	TargetSegmentId uuid.UUID
	SourceSegmentId uuid.UUID
	RelevanceScore  float64
	Rank            int
	SearchMethod    string
	SearchQuery     string
	CreatedAt       time.Time
}

// ContextSource is a stored reference joined back to its passage for "view sources".
type ContextSource struct {
	SegmentId      uuid.UUID
	DocumentId     uuid.UUID
	DocumentTitle  string
	SourceSystem   string
	SourceRole     string
	Content        string
	RelevanceScore float64
	Rank           int
	SearchMethod   string
	SearchQuery    string
}

// SearchHit is one row of the lexical browse search.
type SearchHit struct {
	DocumentId    uuid.UUID
	DocumentTitle string
	SourceSystem  string
	SegmentId     uuid.UUID
	Sequence      int
	SourceRole    string
	Snippet       string
	StartedAt     *time.Time
}

type SearchFilter struct {
	Query        string
	SourceSystem string
	SourceRole   string
	DocumentId   *uuid.UUID
	Limit        int
	Offset       int
}
