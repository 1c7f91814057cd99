package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BySourceSystem struct {
	SourceSystem string
}

func (s BySourceSystem) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_system = ?", s.SourceSystem)
}

type ByDocumentVersionID struct {
	VersionID uuid.UUID
}

func (s ByDocumentVersionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_version_id = ?", s.VersionID)
}

// SegmentOrder is parent-first then sequence, the transcript order.
type SegmentOrder struct{}

func (s SegmentOrder) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("parent_segment_id NULLS FIRST").Order("sequence ASC")
}
