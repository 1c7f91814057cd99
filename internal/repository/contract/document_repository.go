package contract

import (
	"context"
	"time"

	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/repository/specification"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, document *entity.Document) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	ListSummaries(ctx context.Context, limit, offset int) ([]*entity.DocumentSummary, error)

	// Native conversations (source_system = '2brain').
	ListConversations(ctx context.Context, limit, offset int) ([]*entity.Conversation, error)
	FindConversation(ctx context.Context, id uuid.UUID) (*entity.Conversation, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string, at time.Time) (bool, error)
	// MergeMetadata shallow-merges patch into raw_metadata.
	MergeMetadata(ctx context.Context, id uuid.UUID, patch map[string]interface{}) (bool, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteConversation(ctx context.Context, id uuid.UUID) (bool, error)

	// Meta reports latest-version segment totals and freshness for the aggregator.
	Meta(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]retrieval.DocumentMeta, error)
}

type DocumentVersionRepository interface {
	Create(ctx context.Context, version *entity.DocumentVersion) error
	FindLatest(ctx context.Context, documentId uuid.UUID) (*entity.DocumentVersion, error)
}
