package retrieval

import (
	"sort"

	"github.com/google/uuid"
)

// Contribution is one ranker's share of a fused score for a 1-based rank.
func Contribution(weight float64, kConst, rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return weight / float64(kConst+rank)
}

// Fuse combines the lexical and vector rankings with weighted reciprocal rank
// fusion. Ranks are list positions; a segment listed twice by the same ranker
// only counts at its first position. The result is the full ordering
// (score desc, segment id asc); paginate afterwards.
func Fuse(lexical, vector []RankedHit, params FusionParams) []FusedHit {
	params = params.WithDefaults()

	byID := make(map[uuid.UUID]*FusedHit, len(lexical)+len(vector))
	order := make([]*FusedHit, 0, len(lexical)+len(vector))

	lookup := func(id uuid.UUID) *FusedHit {
		if fh, ok := byID[id]; ok {
			return fh
		}
		fh := &FusedHit{SegmentID: id}
		byID[id] = fh
		order = append(order, fh)
		return fh
	}

	for i, hit := range truncate(lexical, params.PoolSize) {
		fh := lookup(hit.SegmentID)
		if fh.LexicalRank != 0 {
			continue
		}
		fh.LexicalRank = i + 1
		fh.Score += Contribution(params.WLexical, params.KConst, fh.LexicalRank)
	}
	for i, hit := range truncate(vector, params.PoolSize) {
		fh := lookup(hit.SegmentID)
		if fh.VectorRank != 0 {
			continue
		}
		fh.VectorRank = i + 1
		fh.Score += Contribution(params.WVector, params.KConst, fh.VectorRank)
	}

	fused := make([]FusedHit, len(order))
	for i, fh := range order {
		fused[i] = *fh
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return lessID(fused[i].SegmentID, fused[j].SegmentID)
	})
	return fused
}

// Paginate slices an already ordered list. limit <= 0 means no limit.
func Paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func truncate(hits []RankedHit, k int) []RankedHit {
	if k > 0 && len(hits) > k {
		return hits[:k]
	}
	return hits
}
