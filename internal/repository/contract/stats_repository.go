package contract

import (
	"context"

	"secondbrain-be/internal/entity"
)

type StatsRepository interface {
	Coverage(ctx context.Context) (*entity.Coverage, error)
	SegmentTable(ctx context.Context) (*entity.TableStats, error)
	LexicalIndexes(ctx context.Context) ([]*entity.IndexUsage, error)
	VacuumAnalyze(ctx context.Context) error
	Ping(ctx context.Context) error
}
