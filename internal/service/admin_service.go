package service

import (
	"context"
	"fmt"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/repository/contract"
)

const adminModule = "AdminService"

// ExpiredEntryPurger drops expired durable cache rows. Only the postgres tier
// implements it; redis expires keys itself.
type ExpiredEntryPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type IAdminService interface {
	Backfill(ctx context.Context, req *dto.BackfillRequest) (*dto.BackfillResponse, error)
	RefreshIndices(ctx context.Context) (*dto.RefreshIndicesResponse, error)
}

type adminService struct {
	vectorizer IVectorizerService
	statsRepo  contract.StatsRepository
	purger     ExpiredEntryPurger
	batchSize  int
	logger     logger.ILogger
}

func NewAdminService(
	vectorizer IVectorizerService,
	statsRepo contract.StatsRepository,
	purger ExpiredEntryPurger,
	batchSize int,
	log logger.ILogger,
) IAdminService {
	return &adminService{
		vectorizer: vectorizer,
		statsRepo:  statsRepo,
		purger:     purger,
		batchSize:  batchSize,
		logger:     log,
	}
}

func (s *adminService) Backfill(ctx context.Context, req *dto.BackfillRequest) (*dto.BackfillResponse, error) {
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	return s.vectorizer.Backfill(ctx, req.Limit, batchSize)
}

// RefreshIndices embeds everything pending, then re-analyzes the segment table
// so the planner sees the new vectors.
func (s *adminService) RefreshIndices(ctx context.Context) (*dto.RefreshIndicesResponse, error) {
	backfill, err := s.vectorizer.Backfill(ctx, 0, s.batchSize)
	if err != nil {
		return nil, err
	}

	if err := s.statsRepo.VacuumAnalyze(ctx); err != nil {
		return nil, fmt.Errorf("vacuum analyze: %w", err)
	}

	var expired int64
	if s.purger != nil {
		expired, err = s.purger.DeleteExpired(ctx)
		if err != nil {
			// cache housekeeping is best effort
			s.logger.Warn(adminModule, "Failed to purge expired cache entries", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	s.logger.Info(adminModule, "Indices refreshed", map[string]interface{}{
		"embedded":       backfill.Ready,
		"failed":         backfill.Failed,
		"expired_purged": expired,
	})

	return &dto.RefreshIndicesResponse{
		Status:   "ok",
		Message:  fmt.Sprintf("Embedded %d segments (%d failed) and analyzed document_segments", backfill.Ready, backfill.Failed),
		Backfill: *backfill,
		Expired:  expired,
	}, nil
}
