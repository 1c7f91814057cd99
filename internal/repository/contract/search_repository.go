package contract

import (
	"context"

	"secondbrain-be/internal/entity"
	"secondbrain-be/pkg/retrieval"
)

type SearchRepository interface {
	retrieval.LexicalRanker
	retrieval.VectorRanker
	Browse(ctx context.Context, filter entity.SearchFilter) ([]*entity.SearchHit, error)
}
