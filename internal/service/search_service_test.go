package service

import (
	"context"
	"testing"
	"time"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/repository/memory"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchFixture() (*fakeStore, *fakeRetriever, *fakeSearchRepo, *memory.QueryStatRepository, ISearchService) {
	store := newFakeStore()
	retriever := &fakeRetriever{}
	repo := &fakeSearchRepo{}
	stats := memory.NewQueryStatRepository(10)
	svc := NewSearchService(store, repo, retriever, stats, logger.NewNopLogger(),
		retrieval.DefaultFusionParams(), retrieval.DefaultAggregateParams())
	return store, retriever, repo, stats, svc
}

func ptr(f float64) *float64 { return &f }

func TestHybrid_HydratesPageAndSkipsMissingSegments(t *testing.T) {
	store, retriever, _, stats, svc := newSearchFixture()

	doc := uuid.New()
	a, b, gone := uuid.New(), uuid.New(), uuid.New()
	retriever.hits = []retrieval.FusedHit{
		{SegmentID: a, Score: 0.03, LexicalRank: 1, VectorRank: 2},
		{SegmentID: gone, Score: 0.02, LexicalRank: 2},
		{SegmentID: b, Score: 0.01, VectorRank: 1},
	}
	store.details[a] = retrieval.SegmentDetail{SegmentID: a, DocumentID: doc, DocumentTitle: "Doc", SourceSystem: "chatgpt", Role: "user"}
	store.details[b] = retrieval.SegmentDetail{SegmentID: b, DocumentID: doc, DocumentTitle: "Doc", SourceSystem: "chatgpt", Role: "assistant"}
	store.metas[a] = retrieval.SegmentMeta{SegmentID: a, DocumentID: doc, Sequence: 3, Snippet: "<b>alpha</b>"}
	store.metas[b] = retrieval.SegmentMeta{SegmentID: b, DocumentID: doc, Sequence: 7, Snippet: "beta"}

	res, err := svc.Hybrid(context.Background(), &dto.HybridSearchRequest{Query: "alpha", Limit: 10, WLexical: ptr(0.7), WVector: ptr(0.3), K: 30})
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, a, res[0].SegmentId)
	assert.Equal(t, 1, res[0].Rank)
	assert.Equal(t, 3, res[0].Sequence)
	require.NotNil(t, res[0].LexicalRank)
	assert.Equal(t, 1, *res[0].LexicalRank)

	assert.Equal(t, b, res[1].SegmentId)
	assert.Equal(t, 3, res[1].Rank)
	assert.Nil(t, res[1].LexicalRank)

	require.Len(t, retriever.params, 1)
	assert.Equal(t, 0.7, retriever.params[0].WLexical)
	assert.Equal(t, 30, retriever.params[0].PoolSize)
	assert.Equal(t, retrieval.DefaultKConst, retriever.params[0].KConst)

	recent := stats.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, SearchKindHybrid, recent[0].Kind)
	assert.Equal(t, 2, recent[0].Results)
}

func TestHybrid_ExplicitZeroWeightIsKept(t *testing.T) {
	_, retriever, _, _, svc := newSearchFixture()

	_, err := svc.Hybrid(context.Background(), &dto.HybridSearchRequest{Query: "q", Limit: 5, WLexical: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, retriever.params[0].WLexical)
	assert.Equal(t, 0.5, retriever.params[0].WVector)
}

func TestHybrid_OffsetContinuesRanks(t *testing.T) {
	store, retriever, _, _, svc := newSearchFixture()
	for i := 0; i < 4; i++ {
		id := uuid.New()
		retriever.hits = append(retriever.hits, retrieval.FusedHit{SegmentID: id, Score: float64(10 - i)})
		store.details[id] = retrieval.SegmentDetail{SegmentID: id}
	}

	res, err := svc.Hybrid(context.Background(), &dto.HybridSearchRequest{Query: "q", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 3, res[0].Rank)
	assert.Equal(t, retriever.hits[2].SegmentID, res[0].SegmentId)
}

func TestDocuments_AggregatesAndLabels(t *testing.T) {
	store, retriever, _, stats, svc := newSearchFixture()

	docA, docB := uuid.New(), uuid.New()
	a1, a2, b1 := uuid.New(), uuid.New(), uuid.New()
	retriever.hits = []retrieval.FusedHit{
		{SegmentID: b1, Score: 0.04},
		{SegmentID: a1, Score: 0.03},
		{SegmentID: a2, Score: 0.02},
	}
	store.metas[a1] = retrieval.SegmentMeta{SegmentID: a1, DocumentID: docA, Sequence: 1}
	store.metas[a2] = retrieval.SegmentMeta{SegmentID: a2, DocumentID: docA, Sequence: 2}
	store.metas[b1] = retrieval.SegmentMeta{SegmentID: b1, DocumentID: docB, Sequence: 1}
	now := time.Now()
	store.docMeta[docA] = retrieval.DocumentMeta{Title: "A", SourceSystem: "claude", TotalSegments: 2, UpdatedAt: now}
	store.docMeta[docB] = retrieval.DocumentMeta{Title: "B", SourceSystem: "chatgpt", TotalSegments: 10, UpdatedAt: now}

	req := &dto.DocumentSearchRequest{
		HybridSearchRequest: dto.HybridSearchRequest{Query: "q", Limit: 10},
		DocTopK:             3,
		DocTopSegments:      1,
	}
	res, err := svc.Documents(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res, 2)

	// A: two matches and full density beat B's single better hit
	assert.Equal(t, docA, res[0].DocumentId)
	assert.Equal(t, "A", res[0].DocumentTitle)
	assert.Equal(t, 2, res[0].MatchCount)
	assert.InDelta(t, 1.0, res[0].MatchDensity, 1e-9)
	require.Len(t, res[0].TopSegments, 1)
	assert.Equal(t, a1, res[0].TopSegments[0].SegmentId)

	assert.Equal(t, "chatgpt", res[1].SourceSystem)
	assert.Equal(t, SearchKindDocuments, stats.Recent(1)[0].Kind)
}

func TestBrowse_PassesFilters(t *testing.T) {
	_, _, repo, _, svc := newSearchFixture()
	doc := uuid.New()
	repo.hits = []*entity.SearchHit{{DocumentId: doc, Snippet: "x"}}

	res, err := svc.Browse(context.Background(), &dto.BrowseSearchRequest{SourceRole: "user", DocumentId: doc.String(), Limit: 20})
	require.NoError(t, err)
	require.Len(t, res, 1)

	require.Len(t, repo.filters, 1)
	assert.Equal(t, "user", repo.filters[0].SourceRole)
	require.NotNil(t, repo.filters[0].DocumentId)
	assert.Equal(t, doc, *repo.filters[0].DocumentId)
}
