package dto

import (
	"time"

	"github.com/google/uuid"
)

// BrowseSearchRequest is the lexical browse over segments; q may be empty.
type BrowseSearchRequest struct {
	Query        string `query:"q"`
	SourceSystem string `query:"source_system"`
	SourceRole   string `query:"source_role"`
	DocumentId   string `query:"document_id" validate:"omitempty,uuid"`
	Limit        int    `query:"limit" validate:"min=1,max=100"`
	Offset       int    `query:"offset" validate:"min=0"`
}

type SearchHitResponse struct {
	DocumentId    uuid.UUID  `json:"document_id"`
	DocumentTitle string     `json:"document_title"`
	SourceSystem  string     `json:"source_system"`
	SegmentId     uuid.UUID  `json:"segment_id"`
	Sequence      int        `json:"sequence"`
	SourceRole    string     `json:"source_role"`
	Snippet       string     `json:"snippet"`
	StartedAt     *time.Time `json:"started_at"`
}

// HybridSearchRequest weights are pointers so an explicit 0 differs from "unset".
type HybridSearchRequest struct {
	Query    string   `query:"q" validate:"required"`
	Limit    int      `query:"limit" validate:"min=1,max=100"`
	Offset   int      `query:"offset" validate:"min=0"`
	WLexical *float64 `query:"w_lexical" validate:"omitempty,min=0,max=1"`
	WVector  *float64 `query:"w_vector" validate:"omitempty,min=0,max=1"`
	K        int      `query:"k" validate:"omitempty,min=1,max=500"`
	KConst   int      `query:"k_const" validate:"omitempty,min=1"`
}

type HybridHitResponse struct {
	SegmentId     uuid.UUID  `json:"segment_id"`
	DocumentId    uuid.UUID  `json:"document_id"`
	DocumentTitle string     `json:"document_title"`
	SourceSystem  string     `json:"source_system"`
	SourceRole    string     `json:"source_role"`
	Sequence      int        `json:"sequence"`
	Snippet       string     `json:"snippet"`
	Score         float64    `json:"score"`
	Rank          int        `json:"rank"`
	LexicalRank   *int       `json:"lexical_rank"`
	VectorRank    *int       `json:"vector_rank"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

type DocumentSearchRequest struct {
	HybridSearchRequest
	DocTopK        int      `query:"doc_topk" validate:"omitempty,min=1,max=50"`
	DocTopSegments int      `query:"doc_top_segments" validate:"min=0,max=50"`
	SegmentLimit   int      `query:"segment_limit" validate:"min=0,max=5000"`
	WBest          *float64 `query:"w_best" validate:"omitempty,min=0"`
	WTopK          *float64 `query:"w_topk" validate:"omitempty,min=0"`
	WDensity       *float64 `query:"w_density" validate:"omitempty,min=0"`
}

type SegmentPreviewResponse struct {
	SegmentId uuid.UUID `json:"segment_id"`
	Sequence  int       `json:"sequence"`
	Role      string    `json:"source_role"`
	Snippet   string    `json:"snippet"`
	Score     float64   `json:"score"`
	DocRank   int       `json:"doc_rank"`
}

type DocumentHitResponse struct {
	DocumentId       uuid.UUID                `json:"document_id"`
	DocumentTitle    string                   `json:"document_title"`
	SourceSystem     string                   `json:"source_system"`
	UpdatedAt        time.Time                `json:"updated_at"`
	DocumentScore    float64                  `json:"document_score"`
	BestSegmentScore float64                  `json:"best_segment_score"`
	TopKScore        float64                  `json:"topk_score"`
	MatchCount       int                      `json:"match_count"`
	MatchDensity     float64                  `json:"match_density"`
	TopSegments      []SegmentPreviewResponse `json:"top_segments"`
}
