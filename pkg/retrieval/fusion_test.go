package retrieval

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012x", n))
}

func ranked(ids ...uuid.UUID) []RankedHit {
	hits := make([]RankedHit, len(ids))
	for i, id := range ids {
		hits[i] = RankedHit{SegmentID: id, Rank: i + 1}
	}
	return hits
}

func TestFuse_SwappedRanksTieBrokenByID(t *testing.T) {
	a, b := segID(0xa), segID(0xb)

	fused := Fuse(ranked(a, b), ranked(b, a), FusionParams{WLexical: 0.5, WVector: 0.5, KConst: 60})

	require.Len(t, fused, 2)
	expected := 0.5/61 + 0.5/62
	assert.InDelta(t, 0.01228, fused[0].Score, 1e-5)
	assert.InDelta(t, expected, fused[0].Score, 1e-12)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, a, fused[0].SegmentID)
	assert.Equal(t, b, fused[1].SegmentID)
	assert.Equal(t, 1, fused[0].LexicalRank)
	assert.Equal(t, 2, fused[0].VectorRank)
}

func TestFuse_ContainsExactlyTheUnion(t *testing.T) {
	tests := []struct {
		name    string
		lexical []uuid.UUID
		vector  []uuid.UUID
	}{
		{name: "disjoint", lexical: []uuid.UUID{segID(1), segID(2)}, vector: []uuid.UUID{segID(3), segID(4)}},
		{name: "overlapping", lexical: []uuid.UUID{segID(1), segID(2), segID(3)}, vector: []uuid.UUID{segID(3), segID(1), segID(9)}},
		{name: "identical", lexical: []uuid.UUID{segID(5), segID(6)}, vector: []uuid.UUID{segID(6), segID(5)}},
		{name: "lexical only", lexical: []uuid.UUID{segID(7)}, vector: nil},
		{name: "vector only", lexical: nil, vector: []uuid.UUID{segID(8)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fused := Fuse(ranked(tt.lexical...), ranked(tt.vector...), DefaultFusionParams())

			want := map[uuid.UUID]bool{}
			for _, id := range append(append([]uuid.UUID{}, tt.lexical...), tt.vector...) {
				want[id] = true
			}
			got := map[uuid.UUID]bool{}
			for _, hit := range fused {
				assert.False(t, got[hit.SegmentID], "duplicate id %s", hit.SegmentID)
				got[hit.SegmentID] = true
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestFuse_OrderingIsScoreDescending(t *testing.T) {
	lexical := ranked(segID(1), segID(2), segID(3), segID(4))
	vector := ranked(segID(4), segID(3), segID(5))

	fused := Fuse(lexical, vector, FusionParams{WLexical: 0.3, WVector: 0.7})

	for i := 1; i < len(fused); i++ {
		prev, cur := fused[i-1], fused[i]
		if prev.Score == cur.Score {
			assert.True(t, lessID(prev.SegmentID, cur.SegmentID))
			continue
		}
		assert.Greater(t, prev.Score, cur.Score)
	}
}

func TestContribution_NonIncreasingInRank(t *testing.T) {
	for _, weight := range []float64{0, 0.25, 0.5, 1} {
		for rank := 1; rank < 200; rank++ {
			assert.GreaterOrEqual(t, Contribution(weight, DefaultKConst, rank), Contribution(weight, DefaultKConst, rank+1))
		}
	}
	assert.Zero(t, Contribution(1, DefaultKConst, 0))
}

func TestFuse_PoolSizeBoundsEachRanker(t *testing.T) {
	lexical := ranked(segID(1), segID(2), segID(3))
	vector := ranked(segID(4), segID(5), segID(6))

	fused := Fuse(lexical, vector, FusionParams{WLexical: 0.5, WVector: 0.5, PoolSize: 2})

	ids := make([]uuid.UUID, len(fused))
	for i, hit := range fused {
		ids[i] = hit.SegmentID
	}
	assert.ElementsMatch(t, []uuid.UUID{segID(1), segID(2), segID(4), segID(5)}, ids)
}

func TestFuse_DuplicateWithinListCountsOnce(t *testing.T) {
	fused := Fuse(ranked(segID(1), segID(1)), nil, FusionParams{WLexical: 1, WVector: 0})

	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
}

func TestFuse_EmptyInputs(t *testing.T) {
	fused := Fuse(nil, nil, DefaultFusionParams())
	assert.NotNil(t, fused)
	assert.Empty(t, fused)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name          string
		limit, offset int
		want          []int
	}{
		{"first page", 2, 0, []int{1, 2}},
		{"second page", 2, 2, []int{3, 4}},
		{"partial last page", 2, 4, []int{5}},
		{"offset past end", 2, 10, []int{}},
		{"no limit", 0, 1, []int{2, 3, 4, 5}},
		{"negative offset", 3, -1, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Paginate(items, tt.limit, tt.offset))
		})
	}
}

func TestFusionParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  FusionParams
		wantErr bool
	}{
		{"defaults", DefaultFusionParams(), false},
		{"zero weights", FusionParams{KConst: 1, PoolSize: 1}, false},
		{"lexical above one", FusionParams{WLexical: 1.1, WVector: 0.5, KConst: 60, PoolSize: 60}, true},
		{"negative vector", FusionParams{WLexical: 0.5, WVector: -0.1, KConst: 60, PoolSize: 60}, true},
		{"negative k_const", FusionParams{WLexical: 0.5, WVector: 0.5, KConst: -1, PoolSize: 60}, true},
		{"negative pool", FusionParams{WLexical: 0.5, WVector: 0.5, KConst: 60, PoolSize: -5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
