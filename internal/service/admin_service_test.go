package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/repository/memory"
	"secondbrain-be/pkg/embedcache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStatsRepo struct{ mock.Mock }

func (m *mockStatsRepo) Coverage(ctx context.Context) (*entity.Coverage, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(*entity.Coverage)
	return c, args.Error(1)
}

func (m *mockStatsRepo) SegmentTable(ctx context.Context) (*entity.TableStats, error) {
	args := m.Called(ctx)
	t, _ := args.Get(0).(*entity.TableStats)
	return t, args.Error(1)
}

func (m *mockStatsRepo) LexicalIndexes(ctx context.Context) ([]*entity.IndexUsage, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).([]*entity.IndexUsage)
	return u, args.Error(1)
}

func (m *mockStatsRepo) VacuumAnalyze(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStatsRepo) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type stubPurger struct {
	n   int64
	err error
}

func (p *stubPurger) DeleteExpired(ctx context.Context) (int64, error) { return p.n, p.err }

type stubCacheStats struct{ stats embedcache.Stats }

func (s stubCacheStats) Stats() embedcache.Stats { return s.stats }

func TestRefreshIndices_BackfillsThenAnalyzes(t *testing.T) {
	store := newFakeStore()
	seedPending(store, "a", "b")
	vectorizer := NewVectorizerService(store, &fakeEmbedder{dim: 4}, "fake-embed", 4, logger.NewNopLogger())

	repo := &mockStatsRepo{}
	repo.On("VacuumAnalyze", mock.Anything).Return(nil).Once()

	svc := NewAdminService(vectorizer, repo, &stubPurger{n: 3}, 50, logger.NewNopLogger())
	res, err := svc.RefreshIndices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, 2, res.Backfill.Ready)
	assert.Equal(t, int64(3), res.Expired)
	repo.AssertExpectations(t)
}

func TestRefreshIndices_PurgeFailureIsNotFatal(t *testing.T) {
	vectorizer := NewVectorizerService(newFakeStore(), &fakeEmbedder{dim: 4}, "fake-embed", 4, logger.NewNopLogger())
	repo := &mockStatsRepo{}
	repo.On("VacuumAnalyze", mock.Anything).Return(nil)

	svc := NewAdminService(vectorizer, repo, &stubPurger{err: errors.New("timeout")}, 50, logger.NewNopLogger())
	res, err := svc.RefreshIndices(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
}

func TestRefreshIndices_VacuumFailurePropagates(t *testing.T) {
	vectorizer := NewVectorizerService(newFakeStore(), &fakeEmbedder{dim: 4}, "fake-embed", 4, logger.NewNopLogger())
	repo := &mockStatsRepo{}
	repo.On("VacuumAnalyze", mock.Anything).Return(errors.New("permission denied"))

	svc := NewAdminService(vectorizer, repo, nil, 50, logger.NewNopLogger())
	_, err := svc.RefreshIndices(context.Background())
	assert.ErrorContains(t, err, "permission denied")
}

func TestAdminBackfill_UsesDefaultBatchSize(t *testing.T) {
	store := newFakeStore()
	seedPending(store, "a", "b", "c")
	vectorizer := NewVectorizerService(store, &fakeEmbedder{dim: 4}, "fake-embed", 4, logger.NewNopLogger())

	svc := NewAdminService(vectorizer, &mockStatsRepo{}, nil, 2, logger.NewNopLogger())
	res, err := svc.Backfill(context.Background(), &dto.BackfillRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 3, res.Ready)
}

func TestStatsService(t *testing.T) {
	repo := &mockStatsRepo{}
	repo.On("Coverage", mock.Anything).Return(&entity.Coverage{
		ByStatus: map[string]int64{"ready": 10, "pending": 2},
		ByNoise:  map[bool]int64{true: 1, false: 11},
	}, nil)
	repo.On("SegmentTable", mock.Anything).Return(&entity.TableStats{Table: "document_segments", TotalSize: "8192 kB", Rows: 12}, nil)

	queries := memory.NewQueryStatRepository(5)
	queries.Record(entity.QueryStat{Kind: SearchKindHybrid, Query: "q", At: time.Now()})

	svc := NewStatsService(repo, queries, stubCacheStats{embedcache.Stats{Entries: 3, Capacity: 1024, TTLSeconds: 3600}})

	coverage, err := svc.Coverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), coverage.ByStatus["ready"])
	assert.Equal(t, int64(1), coverage.Noise)
	assert.Equal(t, int64(11), coverage.NotNoise)

	table, err := svc.Table(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), table.Rows)

	assert.Len(t, svc.Queries(0), 1)
	assert.Equal(t, 1024, svc.Cache().Capacity)
	assert.Equal(t, 3600.0, svc.Cache().TTLSeconds)
}

func TestHealthService(t *testing.T) {
	repo := &mockStatsRepo{}
	repo.On("Ping", mock.Anything).Return(nil).Once()
	repo.On("Ping", mock.Anything).Return(errors.New("down")).Once()

	svc := NewHealthService(repo, nil)

	ok := svc.Check(context.Background())
	assert.Equal(t, HealthOK, ok.Status)
	assert.Equal(t, HealthDisabled, ok.Checks["redis"])

	down := svc.Check(context.Background())
	assert.Equal(t, HealthUnavailable, down.Status)
	assert.Equal(t, HealthUnavailable, down.Checks["database"])
}
