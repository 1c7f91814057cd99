// Package embedcache memoizes (model, text) → embedding across an in-process
// tier and an optional durable tier.
package embedcache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/pkg/metrics"
	"secondbrain-be/pkg/apperror"
	"secondbrain-be/pkg/embedding"
)

const module = "EmbeddingCache"

// DefaultFillTimeout bounds one shared miss, which no single caller can cancel.
const DefaultFillTimeout = 30 * time.Second

var tracer = otel.Tracer("embedcache")

// DurableStore is the shared second tier. Get and Put also bump the entry's
// use_count and last_used_at. Concurrent Puts for one key: last write wins.
type DurableStore interface {
	Get(ctx context.Context, key Key) ([]float32, bool, error)
	Put(ctx context.Context, key Key, values []float32, ttl time.Duration) error
}

type Cache struct {
	provider    embedding.EmbeddingProvider
	memory      *MemoryTier
	durable     DurableStore
	durableTTL  time.Duration
	logger      logger.ILogger
	group       singleflight.Group
	fillTimeout time.Duration
}

// NewCache wires the tiers. durable may be nil to run memory-only.
func NewCache(provider embedding.EmbeddingProvider, memory *MemoryTier, durable DurableStore, durableTTL time.Duration, log logger.ILogger) *Cache {
	if durableTTL <= 0 {
		durableTTL = memory.TTL()
	}
	return &Cache{
		provider:    provider,
		memory:      memory,
		durable:     durable,
		durableTTL:  durableTTL,
		logger:      log,
		fillTimeout: DefaultFillTimeout,
	}
}

// GetOrCompute returns the embedding for text under model, computing it at
// most once per key while it stays cached. An empty model selects the
// provider's default.
func (c *Cache) GetOrCompute(ctx context.Context, model, text string) ([]float32, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, apperror.Validation("embedding text is empty")
	}
	if c.provider == nil {
		return nil, apperror.ProviderUnavailable(nil, "embedding provider is not configured")
	}
	if model == "" {
		model = c.provider.DefaultModel()
	}
	key := Key{Model: model, Text: normalized}

	if values, ok := c.memory.Get(key); ok {
		metrics.EmbeddingCacheLookups.WithLabelValues("memory", "hit").Inc()
		return values, nil
	}
	metrics.EmbeddingCacheLookups.WithLabelValues("memory", "miss").Inc()

	ch := c.group.DoChan(key.Hash(), func() (interface{}, error) {
		// waiters on the same key must not inherit the first caller's cancellation
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fillTimeout)
		defer cancel()
		return c.fill(fillCtx, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneVector(res.Val.([]float32)), nil
	}
}

// fill runs once per key among concurrent callers.
func (c *Cache) fill(ctx context.Context, key Key) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "embedcache.fill",
		trace.WithAttributes(attribute.String("embedding.model", key.Model)))
	defer span.End()

	// another caller may have filled the memory tier while we queued
	if values, ok := c.memory.Get(key); ok {
		return values, nil
	}

	if values, ok := c.durableGet(ctx, key); ok {
		metrics.EmbeddingCacheLookups.WithLabelValues("durable", "hit").Inc()
		c.memory.Put(key, values)
		metrics.EmbeddingCacheEntries.Set(float64(c.memory.Len()))
		return values, nil
	}

	resp, err := c.provider.Generate(ctx, key.Text,
		embedding.WithModel(key.Model),
		embedding.WithTaskType(embedding.TaskRetrievalQuery))
	if err != nil {
		span.RecordError(err)
		metrics.EmbeddingCacheLookups.WithLabelValues("provider", "error").Inc()
		if apperror.Is(err, apperror.KindProviderUnavailable) {
			return nil, err
		}
		return nil, apperror.ProviderUnavailable(err, "embedding provider failed")
	}
	if resp == nil || len(resp.Values) == 0 {
		metrics.EmbeddingCacheLookups.WithLabelValues("provider", "error").Inc()
		return nil, apperror.ProviderUnavailable(nil, "embedding provider returned no vector")
	}
	metrics.EmbeddingCacheLookups.WithLabelValues("provider", "hit").Inc()

	c.memory.Put(key, resp.Values)
	metrics.EmbeddingCacheEntries.Set(float64(c.memory.Len()))
	c.durablePut(ctx, key, resp.Values)

	return cloneVector(resp.Values), nil
}

func (c *Cache) durableGet(ctx context.Context, key Key) ([]float32, bool) {
	if c.durable == nil {
		return nil, false
	}
	values, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.swallow("get", key, err)
		return nil, false
	}
	if !ok {
		metrics.EmbeddingCacheLookups.WithLabelValues("durable", "miss").Inc()
		return nil, false
	}
	return values, true
}

func (c *Cache) durablePut(ctx context.Context, key Key, values []float32) {
	if c.durable == nil {
		return
	}
	if err := c.durable.Put(ctx, key, values, c.durableTTL); err != nil {
		c.swallow("put", key, err)
	}
}

func (c *Cache) swallow(op string, key Key, err error) {
	cacheErr := apperror.CacheFailure(err, "durable embedding cache "+op+" failed")
	metrics.EmbeddingCacheErrors.WithLabelValues(op).Inc()
	c.logger.Warn(module, cacheErr.Message, map[string]interface{}{
		"model": key.Model,
		"error": err.Error(),
	})
}

// Stats reports the memory tier occupancy.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:    c.memory.Len(),
		Capacity:   c.memory.Capacity(),
		TTLSeconds: int(c.memory.TTL().Seconds()),
		Durable:    c.durable != nil,
	}
}

type Stats struct {
	Entries    int  `json:"entries"`
	Capacity   int  `json:"capacity"`
	TTLSeconds int  `json:"ttl_seconds"`
	Durable    bool `json:"durable"`
}
