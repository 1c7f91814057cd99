package contract

import (
	"context"
	"time"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/repository/specification"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
)

type SegmentRepository interface {
	// AppendMessage inserts a chat message at the end of the version and
	// returns it with its assigned sequence.
	AppendMessage(ctx context.Context, versionId uuid.UUID, role, content string, at time.Time) (*entity.Segment, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Segment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Segment, error)
	FindMessages(ctx context.Context, documentId uuid.UUID) ([]*entity.ChatMessage, error)

	FetchSegments(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]retrieval.SegmentDetail, error)
	FetchMeta(ctx context.Context, ids []uuid.UUID, query string) (map[uuid.UUID]retrieval.SegmentMeta, error)

	// ClaimPending locks up to limit pending segments; call inside a transaction.
	ClaimPending(ctx context.Context, limit int) ([]*entity.Segment, error)
	MarkReady(ctx context.Context, id uuid.UUID, embedding []float32, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
