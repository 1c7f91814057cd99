package bootstrap

import (
	"context"
	"fmt"
	"os"

	"secondbrain-be/internal/config"
	"secondbrain-be/internal/controller"
	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/handler"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/repository/implementation"
	"secondbrain-be/internal/repository/memory"
	"secondbrain-be/internal/repository/unitofwork"
	"secondbrain-be/internal/service"
	"secondbrain-be/pkg/embedcache"
	"secondbrain-be/pkg/embedding"
	"secondbrain-be/pkg/events"
	"secondbrain-be/pkg/llm/factory"
	pktNats "secondbrain-be/pkg/nats"
	"secondbrain-be/pkg/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const containerModule = "Container"

type Container struct {
	Logger logger.ILogger

	// Controllers
	ConversationController controller.IConversationController
	SearchController       controller.ISearchController
	DocumentController     controller.IDocumentController
	StatsController        controller.IStatsController
	AdminController        controller.IAdminController
	ChatStreamHandler      *handler.ChatStreamHandler

	HealthService       service.IHealthService
	ConversationService service.IConversationService
	// Background services, started by Start
	ConsumerService   service.IConsumerService
	VectorizerService service.IVectorizerService
	SearchService     service.ISearchService

	cfg       *config.Config
	pubSub    *gochannel.GoChannel
	rdb       *redis.Client
	natsPub   *pktNats.Publisher
	natsSub   *pktNats.Subscriber
	vecLogger logger.ILogger
}

// NewContainer wires every layer. Redis and NATS are optional: when they are
// unreachable the container degrades to memory-only caching and no events.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	vecLogger := logger.NewIsolatedLogger(cfg.App.VectorizerLogPath)

	// In-process queue for vectorize signals
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermillLogger)

	embeddingProvider, err := embedding.NewProvider(
		cfg.Ai.EmbeddingProvider,
		cfg.Ai.EmbeddingBaseURL,
		cfg.Ai.OpenAIAPIKey,
		cfg.Ai.EmbeddingModel,
	)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	sysLogger.Info(containerModule, "AI providers ready", map[string]interface{}{
		"embedding": cfg.Ai.EmbeddingProvider,
		"llm":       cfg.Ai.LLMProvider,
		"model":     cfg.Ai.LLMModel,
	})

	rdb := connectRedis(cfg.App.RedisURL, sysLogger)
	natsPub, natsSub := connectNats(cfg.App.NatsURL, sysLogger)

	// Embedding cache
	memoryTier, err := embedcache.NewMemoryTier(cfg.Cache.MemorySize, cfg.Cache.MemoryTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	var durable embedcache.DurableStore
	var purger service.ExpiredEntryPurger
	if cfg.Cache.Tier2Enabled {
		switch {
		case cfg.Cache.Tier2Backend == "redis" && rdb != nil:
			durable = embedcache.NewRedisStore(rdb)
		case cfg.Cache.Tier2Backend == "redis":
			sysLogger.Warn(containerModule, "Redis durable tier requested but redis is unavailable", nil)
		default:
			cacheRepo := implementation.NewEmbeddingCacheRepository(db)
			durable = cacheRepo
			purger = cacheRepo
		}
	}
	embedCache := embedcache.NewCache(embeddingProvider, memoryTier, durable, cfg.Cache.Tier2TTL, sysLogger)

	// Retrieval
	searchRepo := implementation.NewSearchRepository(db, cfg.Retrieval.IVFFlatProbes)
	retriever := retrieval.NewHybridRetriever(searchRepo, searchRepo, embedCache, cfg.Ai.EmbeddingModel)
	assembler := retrieval.NewContextAssembler(retriever, implementation.NewSegmentRepository(db))
	fusion := retrieval.FusionParams{
		WLexical: cfg.Chat.WLexical,
		WVector:  cfg.Chat.WVector,
		KConst:   cfg.Retrieval.KConst,
		PoolSize: cfg.Retrieval.PoolSize,
	}.WithDefaults()

	statsRepo := implementation.NewStatsRepository(db)
	queryStats := memory.NewQueryStatRepository(memory.DefaultQueryStatCapacity)
	configCache := memory.NewChatConfigRepository(cfg.Cache.ChatConfigTTL)

	// A typed nil would defeat the nil checks in publishEvent.
	var eventPublisher service.IEventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	publisherService := service.NewPublisherService(cfg.Vectorizer.Topic, pubSub)
	conversationService := service.NewConversationService(uowFactory, configCache, eventPublisher, sysLogger, chatDefaults(cfg.Chat))
	chatService := service.NewChatService(
		uowFactory,
		conversationService,
		assembler,
		llmProvider,
		publisherService,
		eventPublisher,
		sysLogger,
		fusion,
	)
	searchService := service.NewSearchService(
		uowFactory,
		searchRepo,
		retriever,
		queryStats,
		sysLogger,
		fusion,
		retrieval.DefaultAggregateParams(),
	)
	vectorizerService := service.NewVectorizerService(
		uowFactory,
		embeddingProvider,
		cfg.Ai.EmbeddingModel,
		cfg.Ai.EmbeddingDimension,
		vecLogger,
	)
	consumerService := service.NewConsumerService(pubSub, cfg.Vectorizer.Topic, vectorizerService, cfg.Vectorizer.BatchSize, vecLogger)
	statsService := service.NewStatsService(statsRepo, queryStats, embedCache)
	adminService := service.NewAdminService(vectorizerService, statsRepo, purger, cfg.Vectorizer.BatchSize, sysLogger)
	documentService := service.NewDocumentService(uowFactory)
	healthService := service.NewHealthService(statsRepo, rdb)

	return &Container{
		Logger: sysLogger,

		ConversationController: controller.NewConversationController(conversationService, chatService),
		SearchController:       controller.NewSearchController(searchService),
		DocumentController:     controller.NewDocumentController(documentService),
		StatsController:        controller.NewStatsController(statsService),
		AdminController:        controller.NewAdminController(adminService),
		ChatStreamHandler:      handler.NewChatStreamHandler(chatService, sysLogger),

		HealthService:       healthService,
		ConversationService: conversationService,
		ConsumerService:     consumerService,
		VectorizerService:   vectorizerService,
		SearchService:       searchService,

		cfg:       cfg,
		pubSub:    pubSub,
		rdb:       rdb,
		natsPub:   natsPub,
		natsSub:   natsSub,
		vecLogger: vecLogger,
	}, nil
}

// Start runs the background consumers: the vectorize queue (when enabled)
// and cross-instance config invalidation (when NATS is up).
func (c *Container) Start(ctx context.Context) error {
	if c.cfg.Vectorizer.ConsumeQueue {
		if err := c.ConsumerService.Consume(ctx); err != nil {
			return fmt.Errorf("vectorize consumer: %w", err)
		}
		c.vecLogger.Info(containerModule, "Vectorize consumer started", map[string]interface{}{"topic": c.cfg.Vectorizer.Topic})
	}

	if c.natsSub == nil {
		return nil
	}

	instance := instanceName()
	for _, eventType := range []string{events.ConversationConfigUpdated, events.ConversationDeleted} {
		consumerName := fmt.Sprintf("config-cache-%s-%s", instance, consumerSuffix(eventType))
		if err := c.natsSub.Subscribe(ctx, eventType, consumerName, c.ConversationService.HandleConfigEvent); err != nil {
			// stale configs expire on their own TTL
			c.Logger.Warn(containerModule, "Config invalidation subscription failed", map[string]interface{}{
				"event": eventType,
				"error": err.Error(),
			})
		}
	}
	return nil
}

func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.pubSub.Close()
}

func chatDefaults(d config.ChatDefaults) entity.ChatConfig {
	return entity.ChatConfig{
		Model:           d.Model,
		Temperature:     d.Temperature,
		MaxTokens:       d.MaxTokens,
		ContextLimit:    d.ContextLimit,
		MaxContextChars: d.MaxContextChars,
		WLexical:        d.WLexical,
		WVector:         d.WVector,
		HistoryLimit:    d.HistoryLimit,
	}
}

func connectRedis(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn(containerModule, "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn(containerModule, "Redis unavailable", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func connectNats(url string, log logger.ILogger) (*pktNats.Publisher, *pktNats.Subscriber) {
	if url == "" {
		return nil, nil
	}

	nc, err := pktNats.Connect(url)
	if err != nil {
		log.Warn(containerModule, "NATS unavailable, events disabled", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}

	pub, err := pktNats.NewPublisher(nc, log)
	if err != nil {
		log.Warn(containerModule, "NATS publisher unavailable", map[string]interface{}{"error": err.Error()})
		nc.Close()
		return nil, nil
	}

	sub, err := pktNats.NewSubscriber(nc, log)
	if err != nil {
		log.Warn(containerModule, "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
		return pub, nil
	}
	return pub, sub
}

// instanceName keys the per-instance consumers; every instance must see
// every invalidation.
func instanceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return sanitize(host) + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}

func consumerSuffix(eventType string) string {
	return sanitize(eventType)
}

// consumer names may not contain '.', '*', '>' or whitespace
func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '.', '*', '>', ' ', '\t':
			out[i] = '_'
		}
	}
	return string(out)
}
