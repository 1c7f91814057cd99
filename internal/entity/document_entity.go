package entity

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Id           uuid.UUID
	SourceSystem string
	ExternalId   string
	Title        string
	Summary      *string
	RawMetadata  map[string]interface{}
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DocumentVersion struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	IngestedAt time.Time
	SourcePath string
	Checksum   string
	RawPayload map[string]interface{}
}

// DocumentSummary is a list row: counts come from the latest version.
type DocumentSummary struct {
	Id           uuid.UUID
	Title        string
	SourceSystem string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SegmentCount int
	CharCount    int
}

// DocumentView is a document with its latest version and that version's segments.
type DocumentView struct {
	Document *Document
	Version  *DocumentVersion
	Segments []*Segment
}
