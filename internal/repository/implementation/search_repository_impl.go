package implementation

import (
	"context"
	"fmt"
	"time"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/model"
	"secondbrain-be/internal/repository/contract"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Searchable segments: latest version of their document, ready and not noise.
const latestVersionsCTE = `
WITH latest AS (
    SELECT DISTINCT ON (document_id) id
    FROM document_versions
    ORDER BY document_id, ingested_at DESC
)`

const lexicalRankSQL = latestVersionsCTE + `
SELECT ds.id AS segment_id, ts_rank_cd(ds.content_plaintext, q.ts_query) AS score
FROM document_segments ds
JOIN latest ON latest.id = ds.document_version_id
CROSS JOIN (SELECT plainto_tsquery('english', ?::text) AS ts_query) q
WHERE ds.content_plaintext @@ q.ts_query
  AND ds.is_noise = FALSE
  AND ds.embedding_status = '` + model.EmbeddingStatusReady + `'
ORDER BY score DESC, ds.id ASC
LIMIT ?`

const vectorRankSQL = latestVersionsCTE + `
SELECT ds.id AS segment_id, ds.embedding <=> ? AS score
FROM document_segments ds
JOIN latest ON latest.id = ds.document_version_id
WHERE ds.embedding IS NOT NULL
  AND ds.is_noise = FALSE
  AND ds.embedding_status = '` + model.EmbeddingStatusReady + `'
ORDER BY score ASC, ds.id ASC
LIMIT ?`

type SearchRepositoryImpl struct {
	db     *gorm.DB
	probes int
}

// NewSearchRepository builds the ranker adapters. probes > 0 sets
// ivfflat.probes for every vector query.
func NewSearchRepository(db *gorm.DB, probes int) contract.SearchRepository {
	return &SearchRepositoryImpl{
		db:     db,
		probes: probes,
	}
}

type rankedRow struct {
	SegmentId uuid.UUID
	Score     float64
}

func toRankedHits(rows []rankedRow) []retrieval.RankedHit {
	hits := make([]retrieval.RankedHit, len(rows))
	for i, row := range rows {
		hits[i] = retrieval.RankedHit{
			SegmentID: row.SegmentId,
			Rank:      i + 1,
			Score:     row.Score,
		}
	}
	return hits
}

func (r *SearchRepositoryImpl) RankLexical(ctx context.Context, query string, k int) ([]retrieval.RankedHit, error) {
	var rows []rankedRow
	if err := r.db.WithContext(ctx).Raw(lexicalRankSQL, query, k).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("lexical rank: %w", err)
	}
	return toRankedHits(rows), nil
}

func (r *SearchRepositoryImpl) RankVector(ctx context.Context, embedding []float32, k int) ([]retrieval.RankedHit, error) {
	var rows []rankedRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.probes > 0 {
			// SET does not accept bind parameters
			if err := tx.Exec(fmt.Sprintf("SET LOCAL ivfflat.probes = %d", r.probes)).Error; err != nil {
				return err
			}
		}
		return tx.Raw(vectorRankSQL, pgvector.NewVector(embedding), k).Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("vector rank: %w", err)
	}
	return toRankedHits(rows), nil
}

const browseSQL = `
WITH query_cte AS (
    SELECT CASE
        WHEN NULLIF(TRIM(@query::text), '') IS NULL THEN NULL
        ELSE plainto_tsquery('english', @query::text)
    END AS ts_query
)
SELECT
    d.id AS document_id,
    d.title AS document_title,
    d.source_system,
    ds.id AS segment_id,
    ds.sequence,
    ds.source_role,
    CASE
        WHEN query_cte.ts_query IS NULL THEN LEFT(ds.content_markdown, 280)
        ELSE ts_headline('english', ds.content_markdown, query_cte.ts_query)
    END AS snippet,
    ds.started_at
FROM documents d
CROSS JOIN query_cte
JOIN LATERAL (
    SELECT dv.id
    FROM document_versions dv
    WHERE dv.document_id = d.id
    ORDER BY dv.ingested_at DESC
    LIMIT 1
) latest_version ON TRUE
JOIN document_segments ds ON ds.document_version_id = latest_version.id
WHERE (query_cte.ts_query IS NULL OR ds.content_plaintext @@ query_cte.ts_query)
  AND (@source_system::text IS NULL OR d.source_system = @source_system::text)
  AND (@source_role::text IS NULL OR ds.source_role = @source_role::text)
  AND (@document_id::uuid IS NULL OR d.id = @document_id::uuid)
  AND ds.is_noise = FALSE
  AND ds.embedding_status = 'ready'
ORDER BY ds.started_at NULLS LAST, ds.sequence
LIMIT @limit OFFSET @offset`

func (r *SearchRepositoryImpl) Browse(ctx context.Context, filter entity.SearchFilter) ([]*entity.SearchHit, error) {
	var rows []struct {
		DocumentId    uuid.UUID
		DocumentTitle string
		SourceSystem  string
		SegmentId     uuid.UUID
		Sequence      int
		SourceRole    string
		Snippet       *string
		StartedAt     *time.Time
	}

	args := map[string]interface{}{
		"query":         filter.Query,
		"source_system": nullableString(filter.SourceSystem),
		"source_role":   nullableString(filter.SourceRole),
		"document_id":   filter.DocumentId,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	}
	if err := r.db.WithContext(ctx).Raw(browseSQL, args).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("browse segments: %w", err)
	}

	hits := make([]*entity.SearchHit, len(rows))
	for i, row := range rows {
		snippet := ""
		if row.Snippet != nil {
			snippet = *row.Snippet
		}
		hits[i] = &entity.SearchHit{
			DocumentId:    row.DocumentId,
			DocumentTitle: row.DocumentTitle,
			SourceSystem:  row.SourceSystem,
			SegmentId:     row.SegmentId,
			Sequence:      row.Sequence,
			SourceRole:    row.SourceRole,
			Snippet:       snippet,
			StartedAt:     row.StartedAt,
		}
	}
	return hits, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
