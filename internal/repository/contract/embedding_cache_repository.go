package contract

import (
	"context"

	"secondbrain-be/pkg/embedcache"
)

type EmbeddingCacheRepository interface {
	embedcache.DurableStore
	DeleteExpired(ctx context.Context) (int64, error)
}
