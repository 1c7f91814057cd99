package service

import (
	"context"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/repository/contract"
	"secondbrain-be/internal/repository/memory"
	"secondbrain-be/pkg/embedcache"
)

// CacheStatsProvider is satisfied by *embedcache.Cache.
type CacheStatsProvider interface {
	Stats() embedcache.Stats
}

type IStatsService interface {
	Queries(limit int) []*dto.QueryStatResponse
	Coverage(ctx context.Context) (*dto.CoverageResponse, error)
	Table(ctx context.Context) (*dto.TableStatsResponse, error)
	Lexical(ctx context.Context) ([]*dto.IndexUsageResponse, error)
	Cache() *dto.CacheStatsResponse
}

type statsService struct {
	statsRepo  contract.StatsRepository
	queryStats *memory.QueryStatRepository
	cache      CacheStatsProvider
}

func NewStatsService(statsRepo contract.StatsRepository, queryStats *memory.QueryStatRepository, cache CacheStatsProvider) IStatsService {
	return &statsService{
		statsRepo:  statsRepo,
		queryStats: queryStats,
		cache:      cache,
	}
}

func (s *statsService) Queries(limit int) []*dto.QueryStatResponse {
	stats := s.queryStats.Recent(limit)
	res := make([]*dto.QueryStatResponse, len(stats))
	for i, st := range stats {
		res[i] = &dto.QueryStatResponse{
			Kind:       st.Kind,
			Query:      st.Query,
			Results:    st.Results,
			DurationMs: st.DurationMs,
			Params:     st.Params,
			At:         st.At,
		}
	}
	return res
}

func (s *statsService) Coverage(ctx context.Context) (*dto.CoverageResponse, error) {
	coverage, err := s.statsRepo.Coverage(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.CoverageResponse{
		ByStatus: coverage.ByStatus,
		Noise:    coverage.ByNoise[true],
		NotNoise: coverage.ByNoise[false],
	}, nil
}

func (s *statsService) Table(ctx context.Context) (*dto.TableStatsResponse, error) {
	table, err := s.statsRepo.SegmentTable(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.TableStatsResponse{
		Table:     table.Table,
		TotalSize: table.TotalSize,
		Rows:      table.Rows,
	}, nil
}

func (s *statsService) Lexical(ctx context.Context) ([]*dto.IndexUsageResponse, error) {
	indexes, err := s.statsRepo.LexicalIndexes(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.IndexUsageResponse, len(indexes))
	for i, idx := range indexes {
		res[i] = &dto.IndexUsageResponse{
			IndexName:   idx.IndexName,
			Scans:       idx.Scans,
			Size:        idx.Size,
			LastAnalyze: idx.LastAnalyze,
			LastVacuum:  idx.LastVacuum,
		}
	}
	return res, nil
}

func (s *statsService) Cache() *dto.CacheStatsResponse {
	st := s.cache.Stats()
	return &dto.CacheStatsResponse{
		Entries:    st.Entries,
		Capacity:   st.Capacity,
		TTLSeconds: float64(st.TTLSeconds),
		Durable:    st.Durable,
	}
}
