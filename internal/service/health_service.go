package service

import (
	"context"
	"time"

	"secondbrain-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const (
	HealthOK          = "ok"
	HealthUnavailable = "unavailable"
	HealthDisabled    = "disabled"
)

type HealthReport struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Duration string            `json:"duration"`
}

type IHealthService interface {
	Check(ctx context.Context) *HealthReport
}

type healthService struct {
	statsRepo contract.StatsRepository
	redis     *redis.Client
	timeout   time.Duration
}

// NewHealthService pings the database and, when rdb is non-nil, redis.
func NewHealthService(statsRepo contract.StatsRepository, rdb *redis.Client) IHealthService {
	return &healthService{
		statsRepo: statsRepo,
		redis:     rdb,
		timeout:   2 * time.Second,
	}
}

func (s *healthService) Check(ctx context.Context) *HealthReport {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report := &HealthReport{
		Status: HealthOK,
		Checks: map[string]string{},
	}

	report.Checks["database"] = HealthOK
	if err := s.statsRepo.Ping(ctx); err != nil {
		report.Checks["database"] = HealthUnavailable
		report.Status = HealthUnavailable
	}

	switch {
	case s.redis == nil:
		report.Checks["redis"] = HealthDisabled
	case s.redis.Ping(ctx).Err() != nil:
		// the cache degrades to memory-only, so redis alone does not fail the check
		report.Checks["redis"] = HealthUnavailable
	default:
		report.Checks["redis"] = HealthOK
	}

	report.Duration = time.Since(start).String()
	return report
}
