package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/repository/memory"
	"secondbrain-be/internal/repository/specification"
	"secondbrain-be/internal/repository/unitofwork"
	"secondbrain-be/pkg/apperror"
	"secondbrain-be/pkg/events"

	"github.com/google/uuid"
)

const conversationModule = "ConversationService"

type IConversationService interface {
	Create(ctx context.Context, req *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error)
	List(ctx context.Context, limit, offset int) ([]*dto.ConversationResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.ConversationResponse, error)
	Update(ctx context.Context, id uuid.UUID, req *dto.UpdateConversationRequest) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetConfig(ctx context.Context, id uuid.UUID) (*dto.ChatConfigDto, error)
	Messages(ctx context.Context, id uuid.UUID) ([]*dto.MessageResponse, error)
	SegmentContext(ctx context.Context, segmentId uuid.UUID) ([]*dto.ContextSourceResponse, error)

	// ResolveConfig returns the stored config, or the defaults when none is stored.
	ResolveConfig(ctx context.Context, id uuid.UUID) (entity.ChatConfig, error)
	InvalidateConfig(id uuid.UUID)
	// HandleConfigEvent drops the cached config named by a config_updated or
	// deleted event published by any instance.
	HandleConfigEvent(ctx context.Context, event events.Event) error
}

type conversationService struct {
	uowFactory     unitofwork.RepositoryFactory
	configCache    *memory.ChatConfigRepository
	eventPublisher IEventPublisher
	logger         logger.ILogger
	defaults       entity.ChatConfig
	now            func() time.Time
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	configCache *memory.ChatConfigRepository,
	eventPublisher IEventPublisher,
	log logger.ILogger,
	defaults entity.ChatConfig,
) IConversationService {
	return &conversationService{
		uowFactory:     uowFactory,
		configCache:    configCache,
		eventPublisher: eventPublisher,
		logger:         log,
		defaults:       defaults,
		now:            time.Now,
	}
}

func (s *conversationService) Create(ctx context.Context, req *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error) {
	cfg := s.defaults
	if req.Config != nil {
		cfg = ConfigFromDto(req.Config)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	docId := uuid.New()
	doc := &entity.Document{
		Id:           docId,
		SourceSystem: entity.NativeSourceSystem,
		ExternalId:   "2brain-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Title:        req.Title,
		RawMetadata:  map[string]interface{}{entity.ChatConfigKey: configToMap(cfg)},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s", docId, now.Format(time.RFC3339Nano))))
	version := &entity.DocumentVersion{
		Id:         uuid.New(),
		DocumentId: docId,
		IngestedAt: now,
		SourcePath: entity.NativeSourcePath,
		Checksum:   hex.EncodeToString(sum[:]),
		RawPayload: map[string]interface{}{
			"type":       "native_conversation",
			"created_at": now.Format(time.RFC3339Nano),
		},
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := uow.DocumentVersionRepository().Create(ctx, version); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.configCache.Save(docId, cfg)
	publishEvent(ctx, s.eventPublisher, s.logger, conversationModule, events.New(events.ConversationCreated, map[string]interface{}{
		"conversation_id": docId.String(),
		"title":           req.Title,
	}))

	return &dto.CreateConversationResponse{
		Id:    docId,
		Title: req.Title,
	}, nil
}

func (s *conversationService) List(ctx context.Context, limit, offset int) ([]*dto.ConversationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.DocumentRepository().ListConversations(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationResponse, len(conversations))
	for i, c := range conversations {
		res[i] = toConversationResponse(c)
	}
	return res, nil
}

func (s *conversationService) Show(ctx context.Context, id uuid.UUID) (*dto.ConversationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := uow.DocumentRepository().FindConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, apperror.NotFound("Conversation %s not found", id)
	}
	return toConversationResponse(conversation), nil
}

func (s *conversationService) Update(ctx context.Context, id uuid.UUID, req *dto.UpdateConversationRequest) error {
	var cfg *entity.ChatConfig
	if req.Config != nil {
		c := ConfigFromDto(req.Config)
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = &c
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findNative(ctx, uow, id)
	if err != nil {
		return err
	}

	if req.Title != nil {
		if _, err := uow.DocumentRepository().UpdateTitle(ctx, doc.Id, *req.Title, s.now().UTC()); err != nil {
			return err
		}
	}

	if cfg != nil {
		patch := map[string]interface{}{entity.ChatConfigKey: configToMap(*cfg)}
		if _, err := uow.DocumentRepository().MergeMetadata(ctx, doc.Id, patch); err != nil {
			return err
		}
		s.configCache.Delete(doc.Id)
		publishEvent(ctx, s.eventPublisher, s.logger, conversationModule, events.New(events.ConversationConfigUpdated, map[string]interface{}{
			"conversation_id": doc.Id.String(),
		}))
	}
	return nil
}

func (s *conversationService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	deleted, err := uow.DocumentRepository().DeleteConversation(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("Conversation %s not found", id)
	}

	s.configCache.Delete(id)
	publishEvent(ctx, s.eventPublisher, s.logger, conversationModule, events.New(events.ConversationDeleted, map[string]interface{}{
		"conversation_id": id.String(),
	}))
	return nil
}

func (s *conversationService) GetConfig(ctx context.Context, id uuid.UUID) (*dto.ChatConfigDto, error) {
	cfg, err := s.ResolveConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	return ConfigToDto(cfg), nil
}

func (s *conversationService) ResolveConfig(ctx context.Context, id uuid.UUID) (entity.ChatConfig, error) {
	if cfg, ok := s.configCache.Get(id); ok {
		return cfg, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.findNative(ctx, uow, id)
	if err != nil {
		return entity.ChatConfig{}, err
	}

	cfg := s.configFromMetadata(doc.RawMetadata)
	s.configCache.Save(id, cfg)
	return cfg, nil
}

func (s *conversationService) InvalidateConfig(id uuid.UUID) {
	s.configCache.Delete(id)
}

func (s *conversationService) HandleConfigEvent(_ context.Context, event events.Event) error {
	raw, _ := event.Payload()["conversation_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		// redelivery cannot fix a bad payload
		s.logger.Warn(conversationModule, "Ignoring event without conversation id", map[string]interface{}{
			"event": event.EventType(),
		})
		return nil
	}

	s.InvalidateConfig(id)
	return nil
}

func (s *conversationService) Messages(ctx context.Context, id uuid.UUID) ([]*dto.MessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.findNative(ctx, uow, id); err != nil {
		return nil, err
	}

	messages, err := uow.SegmentRepository().FindMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageResponse, len(messages))
	for i, m := range messages {
		res[i] = &dto.MessageResponse{
			SegmentId: m.SegmentId,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return res, nil
}

func (s *conversationService) SegmentContext(ctx context.Context, segmentId uuid.UUID) ([]*dto.ContextSourceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sources, err := uow.ContextReferenceRepository().FindByTarget(ctx, segmentId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ContextSourceResponse, len(sources))
	for i, src := range sources {
		res[i] = &dto.ContextSourceResponse{
			SegmentId:     src.SegmentId,
			DocumentId:    src.DocumentId,
			DocumentTitle: src.DocumentTitle,
			SourceSystem:  src.SourceSystem,
			Content:       src.Content,
			Score:         src.RelevanceScore,
			Rank:          src.Rank,
			SourceRole:    src.SourceRole,
			SearchMethod:  src.SearchMethod,
			SearchQuery:   src.SearchQuery,
		}
	}
	return res, nil
}

func (s *conversationService) findNative(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.Document, error) {
	doc, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.BySourceSystem{SourceSystem: entity.NativeSourceSystem},
	)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NotFound("Conversation %s not found", id)
	}
	return doc, nil
}

// configFromMetadata overlays the stored chat_config on the defaults, so keys
// missing from older rows keep their default value.
func (s *conversationService) configFromMetadata(meta map[string]interface{}) entity.ChatConfig {
	cfg := s.defaults
	raw, ok := meta[entity.ChatConfigKey].(map[string]interface{})
	if !ok {
		return cfg
	}

	// rows written before the rename
	if v, ok := raw["w_bm25"]; ok {
		if _, set := raw["w_lexical"]; !set {
			raw["w_lexical"] = v
		}
	}
	if v, ok := raw["w_vec"]; ok {
		if _, set := raw["w_vector"]; !set {
			raw["w_vector"] = v
		}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		s.logger.Warn(conversationModule, "Ignoring malformed stored chat config", map[string]interface{}{
			"error": err.Error(),
		})
		return s.defaults
	}
	return cfg
}

func configToMap(cfg entity.ChatConfig) map[string]interface{} {
	b, _ := json.Marshal(cfg)
	out := map[string]interface{}{}
	_ = json.Unmarshal(b, &out)
	return out
}

func toConversationResponse(c *entity.Conversation) *dto.ConversationResponse {
	res := &dto.ConversationResponse{
		Id:           c.Id,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: c.MessageCount,
	}
	if c.Config != nil {
		res.Config = ConfigToDto(*c.Config)
	}
	return res
}

func ConfigFromDto(d *dto.ChatConfigDto) entity.ChatConfig {
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

func ConfigToDto(c entity.ChatConfig) *dto.ChatConfigDto {
	return &dto.ChatConfigDto{
		Model:           c.Model,
		Temperature:     c.Temperature,
		MaxTokens:       c.MaxTokens,
		ContextLimit:    c.ContextLimit,
		MaxContextChars: c.MaxContextChars,
		WLexical:        c.WLexical,
		WVector:         c.WVector,
		HistoryLimit:    c.HistoryLimit,
	}
}
