package service

import (
	"context"
	"fmt"
	"time"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/pkg/metrics"
	"secondbrain-be/internal/repository/unitofwork"
	"secondbrain-be/pkg/embedding"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	vectorizerModule = "VectorizerService"

	DefaultVectorizerBatchSize = 50
)

var vectorizerTracer = otel.Tracer("vectorizer")

type BatchResult struct {
	Processed int
	Ready     int
	Failed    int
}

type IVectorizerService interface {
	// EmbedPending claims one batch of pending segments and embeds it.
	EmbedPending(ctx context.Context, batchSize int) (*BatchResult, error)
	// Backfill repeats EmbedPending until nothing is pending or limit segments
	// were processed. limit <= 0 means no limit.
	Backfill(ctx context.Context, limit, batchSize int) (*dto.BackfillResponse, error)
}

type vectorizerService struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	model             string
	dimension         int
	logger            logger.ILogger
	now               func() time.Time
}

// NewVectorizerService embeds with model and rejects vectors whose length is
// not dimension, since the column is fixed-size.
func NewVectorizerService(
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	model string,
	dimension int,
	log logger.ILogger,
) IVectorizerService {
	return &vectorizerService{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		model:             model,
		dimension:         dimension,
		logger:            log,
		now:               time.Now,
	}
}

func (s *vectorizerService) EmbedPending(ctx context.Context, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultVectorizerBatchSize
	}

	ctx, span := vectorizerTracer.Start(ctx, "vectorizer.batch", trace.WithAttributes(attribute.Int("batch.size", batchSize)))
	defer span.End()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	segments, err := uow.SegmentRepository().ClaimPending(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, seg := range segments {
		result.Processed++

		values, embedErr := s.embed(ctx, seg.ContentMarkdown)
		if embedErr != nil {
			s.logger.Warn(vectorizerModule, "Segment embedding failed", map[string]interface{}{
				"segment_id": seg.Id.String(),
				"error":      embedErr.Error(),
			})
			if err := uow.SegmentRepository().MarkFailed(ctx, seg.Id); err != nil {
				return nil, err
			}
			metrics.VectorizerSegmentsTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}

		if err := uow.SegmentRepository().MarkReady(ctx, seg.Id, values, s.now().UTC()); err != nil {
			return nil, err
		}
		metrics.VectorizerSegmentsTotal.WithLabelValues("ready").Inc()
		result.Ready++
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("batch.ready", result.Ready), attribute.Int("batch.failed", result.Failed))
	if result.Processed > 0 {
		s.logger.Info(vectorizerModule, "Batch embedded", map[string]interface{}{
			"processed": result.Processed,
			"ready":     result.Ready,
			"failed":    result.Failed,
		})
	}
	return result, nil
}

func (s *vectorizerService) Backfill(ctx context.Context, limit, batchSize int) (*dto.BackfillResponse, error) {
	if batchSize <= 0 {
		batchSize = DefaultVectorizerBatchSize
	}

	res := &dto.BackfillResponse{}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		size := batchSize
		if limit > 0 {
			remaining := limit - res.Processed
			if remaining <= 0 {
				break
			}
			if remaining < size {
				size = remaining
			}
		}

		batch, err := s.EmbedPending(ctx, size)
		if err != nil {
			return res, err
		}
		if batch.Processed == 0 {
			break
		}

		res.Batches++
		res.Processed += batch.Processed
		res.Ready += batch.Ready
		res.Failed += batch.Failed
	}

	s.logger.Info(vectorizerModule, "Backfill finished", map[string]interface{}{
		"batches":   res.Batches,
		"processed": res.Processed,
		"ready":     res.Ready,
		"failed":    res.Failed,
	})
	return res, nil
}

func (s *vectorizerService) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embeddingProvider.Generate(ctx, text,
		embedding.WithModel(s.model),
		embedding.WithTaskType(embedding.TaskRetrievalDocument),
	)
	if err != nil {
		return nil, err
	}
	if s.dimension > 0 && len(resp.Values) != s.dimension {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(resp.Values), s.dimension)
	}
	return resp.Values, nil
}
