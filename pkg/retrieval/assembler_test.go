package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFusedRetriever struct{ mock.Mock }

func (m *mockFusedRetriever) Retrieve(ctx context.Context, query string, params FusionParams) ([]FusedHit, error) {
	args := m.Called(ctx, query, params)
	hits, _ := args.Get(0).([]FusedHit)
	return hits, args.Error(1)
}

type mockSegmentFetcher struct{ mock.Mock }

func (m *mockSegmentFetcher) FetchSegments(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]SegmentDetail, error) {
	args := m.Called(ctx, ids)
	details, _ := args.Get(0).(map[uuid.UUID]SegmentDetail)
	return details, args.Error(1)
}

func fusedHits(n int) []FusedHit {
	hits := make([]FusedHit, n)
	for i := range hits {
		hits[i] = FusedHit{SegmentID: segID(i + 1), Score: 1 / float64(61+i)}
	}
	return hits
}

func detailsFor(hits []FusedHit, doc uuid.UUID, content func(i int) string, ts func(i int) *time.Time) map[uuid.UUID]SegmentDetail {
	details := make(map[uuid.UUID]SegmentDetail, len(hits))
	for i, hit := range hits {
		details[hit.SegmentID] = SegmentDetail{
			SegmentID:     hit.SegmentID,
			DocumentID:    doc,
			DocumentTitle: "Imported chat",
			SourceSystem:  "chatgpt",
			Role:          "assistant",
			Content:       content(i),
			StartedAt:     ts(i),
		}
	}
	return details
}

func at(minutes int) *time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
	return &t
}

func TestSelectPassages_BudgetStopsBeforeOverflow(t *testing.T) {
	hits := fusedHits(3)
	details := detailsFor(hits, segID(0xd1),
		func(int) string { return strings.Repeat("x", 40) },
		func(i int) *time.Time { return at(i) })

	passages := SelectPassages(hits, details, AssembleOptions{Limit: 10, MaxContextChars: 100})

	require.Len(t, passages, 2)
	assert.Equal(t, 80, TotalChars(passages))
	assert.Equal(t, segID(1), passages[0].SegmentID)
	assert.Equal(t, segID(2), passages[1].SegmentID)
}

func TestSelectPassages_OversizedFirstPassageIsKept(t *testing.T) {
	hits := fusedHits(1)
	details := detailsFor(hits, segID(0xd1),
		func(int) string { return strings.Repeat("y", 500) },
		func(int) *time.Time { return nil })

	passages := SelectPassages(hits, details, AssembleOptions{Limit: 10, MaxContextChars: 100})

	require.Len(t, passages, 1)
	assert.Equal(t, 500, TotalChars(passages))
}

func TestSelectPassages_NeverExceedsBudgetBeyondFirst(t *testing.T) {
	lengths := []int{30, 120, 10, 55, 5, 70}
	hits := fusedHits(len(lengths))
	details := detailsFor(hits, segID(0xd1),
		func(i int) string { return strings.Repeat("z", lengths[i]) },
		func(i int) *time.Time { return at(i) })

	for _, budget := range []int{1, 25, 30, 100, 150, 1000} {
		passages := SelectPassages(hits, details, AssembleOptions{Limit: 10, MaxContextChars: budget})
		require.NotEmpty(t, passages)
		if len(passages) > 1 {
			assert.LessOrEqual(t, TotalChars(passages), budget)
		}
	}
}

func TestSelectPassages_ChronologicalAndExcludesDocument(t *testing.T) {
	own, other := segID(0xc0), segID(0xd1)
	hits := fusedHits(5)
	timestamps := []*time.Time{at(30), at(10), nil, at(5), at(20)}
	details := detailsFor(hits, other,
		func(int) string { return "passage" },
		func(i int) *time.Time { return timestamps[i] })
	excluded := details[segID(2)]
	excluded.DocumentID = own
	details[segID(2)] = excluded

	passages := SelectPassages(hits, details, AssembleOptions{Limit: 10, MaxContextChars: 1000, ExcludeDocumentID: own})

	require.Len(t, passages, 4)
	for _, p := range passages {
		assert.NotEqual(t, own, p.DocumentID)
	}
	assert.Nil(t, passages[0].StartedAt)
	for i := 2; i < len(passages); i++ {
		assert.False(t, passages[i].StartedAt.Before(*passages[i-1].StartedAt))
	}
	assert.Equal(t, segID(3), passages[0].SegmentID)
	assert.Equal(t, 3, passages[0].Rank)
	assert.Equal(t, []int{3, 4, 5, 1}, []int{passages[0].Rank, passages[1].Rank, passages[2].Rank, passages[3].Rank})
}

func TestSelectPassages_StopsAtLimit(t *testing.T) {
	hits := fusedHits(9)
	details := detailsFor(hits, segID(0xd1),
		func(int) string { return "a" },
		func(i int) *time.Time { return at(-i) })

	passages := SelectPassages(hits, details, AssembleOptions{Limit: 3, MaxContextChars: 1000})

	require.Len(t, passages, 3)
	ranks := []int{passages[0].Rank, passages[1].Rank, passages[2].Rank}
	assert.Equal(t, []int{3, 2, 1}, ranks)
}

func TestSelectPassages_SkipsVanishedSegments(t *testing.T) {
	hits := fusedHits(3)
	details := detailsFor(hits, segID(0xd1),
		func(int) string { return "b" },
		func(i int) *time.Time { return at(i) })
	delete(details, segID(1))

	passages := SelectPassages(hits, details, AssembleOptions{Limit: 5, MaxContextChars: 100})

	require.Len(t, passages, 2)
	assert.Equal(t, segID(2), passages[0].SegmentID)
}

func TestSelectPassages_CountsCodePoints(t *testing.T) {
	hits := fusedHits(2)
	details := detailsFor(hits, segID(0xd1),
		func(int) string { return strings.Repeat("é", 50) },
		func(i int) *time.Time { return at(i) })

	passages := SelectPassages(hits, details, AssembleOptions{Limit: 5, MaxContextChars: 100})

	assert.Len(t, passages, 2)
}

func TestContextAssembler_FetchesTriplePoolInOneBatch(t *testing.T) {
	retriever := new(mockFusedRetriever)
	fetcher := new(mockSegmentFetcher)
	hits := fusedHits(20)
	params := FusionParams{WLexical: 0.4, WVector: 0.6}

	retriever.On("Retrieve", mock.Anything, "deploy notes", params).Return(hits, nil)
	fetcher.On("FetchSegments", mock.Anything, mock.MatchedBy(func(ids []uuid.UUID) bool {
		return len(ids) == 6 && ids[0] == segID(1) && ids[5] == segID(6)
	})).Return(detailsFor(hits[:6], segID(0xd1),
		func(int) string { return "c" },
		func(i int) *time.Time { return at(i) }), nil).Once()

	a := NewContextAssembler(retriever, fetcher)
	passages, err := a.Assemble(context.Background(), "deploy notes", AssembleOptions{Limit: 2, MaxContextChars: 100, Fusion: params})

	require.NoError(t, err)
	assert.Len(t, passages, 2)
	retriever.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestContextAssembler_EmptyRankingSkipsFetch(t *testing.T) {
	retriever := new(mockFusedRetriever)
	fetcher := new(mockSegmentFetcher)
	retriever.On("Retrieve", mock.Anything, "nothing matches", mock.Anything).Return([]FusedHit{}, nil)

	a := NewContextAssembler(retriever, fetcher)
	passages, err := a.Assemble(context.Background(), "nothing matches", AssembleOptions{Limit: 5, MaxContextChars: 100})

	require.NoError(t, err)
	assert.Empty(t, passages)
	fetcher.AssertNotCalled(t, "FetchSegments", mock.Anything, mock.Anything)
}
