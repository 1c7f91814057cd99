package implementation

import (
	"context"
	"fmt"
	"time"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/model"
	"secondbrain-be/internal/repository/contract"

	"gorm.io/gorm"
)

type StatsRepositoryImpl struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) contract.StatsRepository {
	return &StatsRepositoryImpl{db: db}
}

func (r *StatsRepositoryImpl) Coverage(ctx context.Context) (*entity.Coverage, error) {
	coverage := &entity.Coverage{
		ByStatus: map[string]int64{},
		ByNoise:  map[bool]int64{},
	}

	var byStatus []struct {
		EmbeddingStatus string
		Count           int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Segment{}).
		Select("embedding_status, COUNT(*) AS count").
		Group("embedding_status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, fmt.Errorf("coverage by status: %w", err)
	}
	for _, row := range byStatus {
		coverage.ByStatus[row.EmbeddingStatus] = row.Count
	}

	var byNoise []struct {
		IsNoise bool
		Count   int64
	}
	err = r.db.WithContext(ctx).
		Model(&model.Segment{}).
		Select("is_noise, COUNT(*) AS count").
		Group("is_noise").
		Scan(&byNoise).Error
	if err != nil {
		return nil, fmt.Errorf("coverage by noise: %w", err)
	}
	for _, row := range byNoise {
		coverage.ByNoise[row.IsNoise] = row.Count
	}

	return coverage, nil
}

func (r *StatsRepositoryImpl) SegmentTable(ctx context.Context) (*entity.TableStats, error) {
	stats := &entity.TableStats{Table: model.Segment{}.TableName()}
	err := r.db.WithContext(ctx).
		Raw("SELECT pg_size_pretty(pg_total_relation_size('public.document_segments'))").
		Scan(&stats.TotalSize).Error
	if err != nil {
		return nil, fmt.Errorf("segment table size: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&model.Segment{}).Count(&stats.Rows).Error; err != nil {
		return nil, fmt.Errorf("segment row count: %w", err)
	}
	return stats, nil
}

const lexicalIndexSQL = `
SELECT
    s.indexrelname AS index_name,
    s.idx_scan AS scans,
    pg_size_pretty(pg_relation_size(s.indexrelid)) AS size,
    t.last_analyze,
    t.last_vacuum
FROM pg_stat_user_indexes s
JOIN pg_stat_user_tables t ON t.relid = s.relid
JOIN pg_class c ON c.oid = s.indexrelid
JOIN pg_am am ON am.oid = c.relam
WHERE s.relname = 'document_segments' AND am.amname = 'gin'
ORDER BY s.indexrelname`

func (r *StatsRepositoryImpl) LexicalIndexes(ctx context.Context) ([]*entity.IndexUsage, error) {
	var rows []struct {
		IndexName   string
		Scans       int64
		Size        string
		LastAnalyze *time.Time
		LastVacuum  *time.Time
	}
	if err := r.db.WithContext(ctx).Raw(lexicalIndexSQL).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("lexical index stats: %w", err)
	}

	usage := make([]*entity.IndexUsage, len(rows))
	for i, row := range rows {
		usage[i] = &entity.IndexUsage{
			IndexName:   row.IndexName,
			Scans:       row.Scans,
			Size:        row.Size,
			LastAnalyze: row.LastAnalyze,
			LastVacuum:  row.LastVacuum,
		}
	}
	return usage, nil
}

// VacuumAnalyze must not run inside a transaction; r.db must be the root handle.
func (r *StatsRepositoryImpl) VacuumAnalyze(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("VACUUM ANALYZE document_segments").Error
}

func (r *StatsRepositoryImpl) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
