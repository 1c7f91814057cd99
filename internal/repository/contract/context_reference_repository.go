package contract

import (
	"context"

	"secondbrain-be/internal/entity"

	"github.com/google/uuid"
)

type ContextReferenceRepository interface {
	// CreateBulk skips pairs that already exist.
	CreateBulk(ctx context.Context, refs []*entity.ContextReference) error
	FindByTarget(ctx context.Context, targetSegmentId uuid.UUID) ([]*entity.ContextSource, error)
}
