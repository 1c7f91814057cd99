package retrieval

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SegmentMeta is what the aggregator needs to know about a fused candidate.
type SegmentMeta struct {
	SegmentID  uuid.UUID
	DocumentID uuid.UUID
	Sequence   int
	Role       string
	Snippet    string
}

// DocumentMeta carries the per-document totals used for density and ordering.
type DocumentMeta struct {
	Title         string
	SourceSystem  string
	TotalSegments int
	UpdatedAt     time.Time
}

type AggregateParams struct {
	Limit          int
	Offset         int
	DocTopK        int
	DocTopSegments int
	// SegmentLimit caps the global fused candidates considered. 0 = default.
	SegmentLimit int
	WBest        float64
	WTopK        float64
	WDensity     float64
}

func DefaultAggregateParams() AggregateParams {
	return AggregateParams{
		Limit:          20,
		DocTopK:        3,
		DocTopSegments: 3,
		WBest:          0.6,
		WTopK:          0.3,
		WDensity:       0.1,
	}
}

// DefaultSegmentLimit is max(limit * max(docTopK, docTopSegments), 50).
func DefaultSegmentLimit(limit, docTopK, docTopSegments int) int {
	depth := docTopK
	if docTopSegments > depth {
		depth = docTopSegments
	}
	if n := limit * depth; n > 50 {
		return n
	}
	return 50
}

func (p AggregateParams) EffectiveSegmentLimit() int {
	if p.SegmentLimit > 0 {
		return p.SegmentLimit
	}
	return DefaultSegmentLimit(p.Limit, p.DocTopK, p.DocTopSegments)
}

type SegmentMatch struct {
	SegmentID uuid.UUID
	Sequence  int
	Role      string
	Snippet   string
	Score     float64
	DocRank   int
}

type DocumentMatch struct {
	DocumentID       uuid.UUID
	UpdatedAt        time.Time
	MatchCount       int
	MatchDensity     float64
	DocumentScore    float64
	BestSegmentScore float64
	TopKScore        float64
	TopSegments      []SegmentMatch
}

// Aggregate rolls a fused segment ranking up to documents. Only the first
// EffectiveSegmentLimit hits of the global ranking are considered; hits with
// no SegmentMeta are ignored. The returned page is ordered by document score
// desc, then most recently updated, then document id.
func Aggregate(hits []FusedHit, segments map[uuid.UUID]SegmentMeta, documents map[uuid.UUID]DocumentMeta, params AggregateParams) []DocumentMatch {
	hits = Paginate(hits, params.EffectiveSegmentLimit(), 0)

	grouped := make(map[uuid.UUID][]SegmentMatch)
	var docOrder []uuid.UUID
	for _, hit := range hits {
		meta, ok := segments[hit.SegmentID]
		if !ok {
			continue
		}
		if _, seen := grouped[meta.DocumentID]; !seen {
			docOrder = append(docOrder, meta.DocumentID)
		}
		grouped[meta.DocumentID] = append(grouped[meta.DocumentID], SegmentMatch{
			SegmentID: hit.SegmentID,
			Sequence:  meta.Sequence,
			Role:      meta.Role,
			Snippet:   meta.Snippet,
			Score:     hit.Score,
		})
	}

	results := make([]DocumentMatch, 0, len(docOrder))
	for _, docID := range docOrder {
		matches := grouped[docID]
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].Score != matches[j].Score {
				return matches[i].Score > matches[j].Score
			}
			return lessID(matches[i].SegmentID, matches[j].SegmentID)
		})

		doc := DocumentMatch{
			DocumentID: docID,
			MatchCount: len(matches),
		}
		for i := range matches {
			matches[i].DocRank = i + 1
			if matches[i].Score > doc.BestSegmentScore {
				doc.BestSegmentScore = matches[i].Score
			}
			if matches[i].DocRank <= params.DocTopK {
				doc.TopKScore += matches[i].Score
			}
		}

		meta := documents[docID]
		doc.UpdatedAt = meta.UpdatedAt
		doc.MatchDensity = matchDensity(doc.MatchCount, meta.TotalSegments)
		doc.DocumentScore = params.WBest*doc.BestSegmentScore +
			params.WTopK*doc.TopKScore +
			params.WDensity*doc.MatchDensity

		previews := params.DocTopSegments
		if previews > len(matches) {
			previews = len(matches)
		}
		if previews < 0 {
			previews = 0
		}
		doc.TopSegments = append([]SegmentMatch(nil), matches[:previews]...)

		results = append(results, doc)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.DocumentScore != b.DocumentScore {
			return a.DocumentScore > b.DocumentScore
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return lessID(a.DocumentID, b.DocumentID)
	})

	return Paginate(results, params.Limit, params.Offset)
}

func matchDensity(matchCount, total int) float64 {
	if total <= 0 {
		return 0
	}
	d := float64(matchCount) / float64(total)
	if d > 1 {
		return 1
	}
	return d
}
