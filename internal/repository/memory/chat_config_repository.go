package memory

import (
	"time"

	"secondbrain-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ChatConfigRepository caches resolved per-conversation configs in process.
// Entries are dropped on update locally and through the config_updated event.
type ChatConfigRepository struct {
	cache *cache.Cache
}

func NewChatConfigRepository(ttl time.Duration) *ChatConfigRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ChatConfigRepository{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *ChatConfigRepository) Save(conversationId uuid.UUID, cfg entity.ChatConfig) {
	r.cache.Set(conversationId.String(), cfg, cache.DefaultExpiration)
}

func (r *ChatConfigRepository) Get(conversationId uuid.UUID) (entity.ChatConfig, bool) {
	if x, found := r.cache.Get(conversationId.String()); found {
		return x.(entity.ChatConfig), true
	}
	return entity.ChatConfig{}, false
}

func (r *ChatConfigRepository) Delete(conversationId uuid.UUID) {
	r.cache.Delete(conversationId.String())
}
