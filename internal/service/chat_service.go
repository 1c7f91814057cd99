package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/entity"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/pkg/metrics"
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/repository/unitofwork"
	"secondbrain-be/pkg/apperror"
	"secondbrain-be/pkg/events"
	"secondbrain-be/pkg/llm"
	"secondbrain-be/pkg/rag/prompt"
	"secondbrain-be/pkg/retrieval"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	chatModule = "ChatService"

	ModeBuffered  = "buffered"
	ModeStreaming = "streaming"

	searchMethodHybrid = "hybrid"
)

var chatTracer = otel.Tracer("chat")

// ContextAssembler is satisfied by retrieval.ContextAssembler.
type ContextAssembler interface {
	Assemble(ctx context.Context, query string, opts retrieval.AssembleOptions) ([]retrieval.RetrievedContext, error)
}

// ConfigResolver loads the stored per-conversation config.
type ConfigResolver interface {
	ResolveConfig(ctx context.Context, id uuid.UUID) (entity.ChatConfig, error)
}

type TurnRequest struct {
	Content string
	// Override replaces the stored config for this turn only.
	Override *entity.ChatConfig
}

type TurnResult struct {
	Content    string
	SegmentId  uuid.UUID
	Context    []retrieval.RetrievedContext
	Model      string
	TokensUsed *int
}

// TurnStream delivers a streaming turn. Chunks closes when generation ends;
// Wait then yields the outcome, which is set exactly once.
type TurnStream struct {
	Chunks <-chan string
	done   chan struct{}
	result *TurnResult
	err    error
}

func (s *TurnStream) Wait() (*TurnResult, error) {
	<-s.done
	return s.result, s.err
}

// Relay writes the stream as events: content per chunk, then context and
// done, or a single error event. When emit fails the client is gone: abort
// is called and the rest of the stream is drained without writing.
func (s *TurnStream) Relay(emit func(dto.StreamEvent) error, abort func()) {
	broken := false
	for chunk := range s.Chunks {
		if broken {
			continue
		}
		if err := emit(dto.StreamEvent{Type: dto.StreamEventContent, Content: chunk}); err != nil {
			broken = true
			abort()
		}
	}

	result, err := s.Wait()
	if broken {
		return
	}
	if err != nil {
		_ = emit(ErrorEvent(err))
		return
	}
	for _, event := range StreamTrailer(result) {
		if err := emit(event); err != nil {
			return
		}
	}
}

type IChatService interface {
	Turn(ctx context.Context, conversationId uuid.UUID, req TurnRequest) (*TurnResult, error)
	StreamTurn(ctx context.Context, conversationId uuid.UUID, req TurnRequest) (*TurnStream, error)
}

type chatService struct {
	uowFactory       unitofwork.RepositoryFactory
	configs          ConfigResolver
	assembler        ContextAssembler
	llmProvider      llm.LLMProvider
	publisherService IPublisherService
	eventPublisher   IEventPublisher
	logger           logger.ILogger
	fusion           retrieval.FusionParams
	now              func() time.Time
}

// NewChatService wires the orchestrator. fusion supplies KConst and PoolSize;
// the weights come from each turn's config.
func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	configs ConfigResolver,
	assembler ContextAssembler,
	llmProvider llm.LLMProvider,
	publisherService IPublisherService,
	eventPublisher IEventPublisher,
	log logger.ILogger,
	fusion retrieval.FusionParams,
) IChatService {
	return &chatService{
		uowFactory:       uowFactory,
		configs:          configs,
		assembler:        assembler,
		llmProvider:      llmProvider,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           log,
		fusion:           fusion,
		now:              time.Now,
	}
}

// preparedTurn is everything a turn needs once the user message is stored.
type preparedTurn struct {
	conversationId uuid.UUID
	query          string
	cfg            entity.ChatConfig
	passages       []retrieval.RetrievedContext
	messages       []llm.Message
}

func (s *chatService) Turn(ctx context.Context, conversationId uuid.UUID, req TurnRequest) (*TurnResult, error) {
	ctx, span := chatTracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("conversation.id", conversationId.String()),
		attribute.String("chat.mode", ModeBuffered),
	))
	defer span.End()

	turn, err := s.prepare(ctx, conversationId, req)
	if err != nil {
		return nil, s.fail(ctx, span, conversationId, ModeBuffered, err)
	}

	start := time.Now()
	resp, err := s.llmProvider.Chat(ctx, turn.messages, s.generationOptions(turn.cfg)...)
	metrics.LLMCallDuration.WithLabelValues(turn.cfg.Model, ModeBuffered).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(ctx, span, conversationId, ModeBuffered, generationError(ctx, err, "generation failed"))
	}

	model := turn.cfg.Model
	if resp.Model != "" {
		model = resp.Model
	}
	tokens := resp.TokensUsed
	metrics.LLMTokensUsed.WithLabelValues(model).Add(float64(tokens))

	segmentId, err := s.persistReply(ctx, turn, resp.Content)
	if err != nil {
		return nil, s.fail(ctx, span, conversationId, ModeBuffered, err)
	}

	result := &TurnResult{
		Content:    resp.Content,
		SegmentId:  segmentId,
		Context:    turn.passages,
		Model:      model,
		TokensUsed: &tokens,
	}
	s.complete(ctx, conversationId, ModeBuffered, result)
	return result, nil
}

func (s *chatService) StreamTurn(ctx context.Context, conversationId uuid.UUID, req TurnRequest) (*TurnStream, error) {
	ctx, span := chatTracer.Start(ctx, "chat.stream_turn", trace.WithAttributes(
		attribute.String("conversation.id", conversationId.String()),
		attribute.String("chat.mode", ModeStreaming),
	))

	turn, err := s.prepare(ctx, conversationId, req)
	if err != nil {
		err = s.fail(ctx, span, conversationId, ModeStreaming, err)
		span.End()
		return nil, err
	}

	upstream, err := s.llmProvider.Stream(ctx, turn.messages, s.generationOptions(turn.cfg)...)
	if err != nil {
		err = s.fail(ctx, span, conversationId, ModeStreaming, generationError(ctx, err, "generation failed"))
		span.End()
		return nil, err
	}

	chunks := make(chan string)
	stream := &TurnStream{
		Chunks: chunks,
		done:   make(chan struct{}),
	}

	go func() {
		defer span.End()
		defer close(stream.done)

		start := time.Now()
		content, genErr := s.forward(ctx, upstream, chunks)
		close(chunks)
		metrics.LLMCallDuration.WithLabelValues(turn.cfg.Model, ModeStreaming).Observe(time.Since(start).Seconds())

		if genErr != nil {
			stream.err = s.fail(ctx, span, conversationId, ModeStreaming, genErr)
			return
		}

		segmentId, err := s.persistReply(ctx, turn, content)
		if err != nil {
			stream.err = s.fail(ctx, span, conversationId, ModeStreaming, err)
			return
		}

		stream.result = &TurnResult{
			Content:   content,
			SegmentId: segmentId,
			Context:   turn.passages,
			Model:     turn.cfg.Model,
		}
		s.complete(ctx, conversationId, ModeStreaming, stream.result)
	}()

	return stream, nil
}

// forward relays upstream chunks and accumulates them. Any upstream error or
// cancellation discards what was accumulated.
func (s *chatService) forward(ctx context.Context, upstream <-chan llm.StreamChunk, out chan<- string) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-upstream:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				return sb.String(), nil
			}
			if chunk.Err != nil {
				return "", generationError(ctx, chunk.Err, "generation stream failed")
			}
			if chunk.Content == "" {
				continue
			}
			sb.WriteString(chunk.Content)
			select {
			case out <- chunk.Content:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
}

// prepare validates the config, stores the user message, then loads history
// and assembles context. Nothing is retrieved before validation passes.
func (s *chatService) prepare(ctx context.Context, conversationId uuid.UUID, req TurnRequest) (*preparedTurn, error) {
	query := strings.TrimSpace(req.Content)
	if query == "" {
		return nil, apperror.Validation("message content is required")
	}

	var cfg entity.ChatConfig
	if req.Override != nil {
		cfg = *req.Override
	} else {
		stored, err := s.configs.ResolveConfig(ctx, conversationId)
		if err != nil {
			return nil, err
		}
		cfg = stored
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.appendMessage(ctx, conversationId, entity.RoleUser, req.Content); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	stored, err := uow.SegmentRepository().FindMessages(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	// the last stored message is the one just added
	if len(stored) > 0 {
		stored = stored[:len(stored)-1]
	}
	history := make([]llm.Message, len(stored))
	for i, m := range stored {
		history[i] = llm.Message{Role: m.Role, Content: m.Content}
	}

	fusion := s.fusion
	fusion.WLexical = cfg.WLexical
	fusion.WVector = cfg.WVector

	passages, err := s.assembler.Assemble(ctx, req.Content, retrieval.AssembleOptions{
		Limit:             cfg.ContextLimit,
		MaxContextChars:   cfg.MaxContextChars,
		Fusion:            fusion,
		ExcludeDocumentID: conversationId,
	})
	if err != nil {
		return nil, err
	}

	return &preparedTurn{
		conversationId: conversationId,
		query:          req.Content,
		cfg:            cfg,
		passages:       passages,
		messages:       prompt.NewContextualBuilder(passages, history, req.Content, cfg.HistoryLimit).Build(),
	}, nil
}

func (s *chatService) generationOptions(cfg entity.ChatConfig) []llm.Option {
	return []llm.Option{
		llm.WithModel(cfg.Model),
		llm.WithTemperature(cfg.Temperature),
		llm.WithMaxTokens(cfg.MaxTokens),
	}
}

// appendMessage stores one message and bumps the conversation in its own transaction.
func (s *chatService) appendMessage(ctx context.Context, conversationId uuid.UUID, role, content string) (*entity.Segment, error) {
	return s.appendWithRefs(ctx, conversationId, role, content, nil)
}

func (s *chatService) persistReply(ctx context.Context, turn *preparedTurn, content string) (uuid.UUID, error) {
	refs := make([]*entity.ContextReference, len(turn.passages))
	for i, p := range turn.passages {
		refs[i] = &entity.ContextReference{
			SourceSegmentId: p.SegmentID,
			RelevanceScore:  p.Score,
			Rank:            p.Rank,
			SearchMethod:    searchMethodHybrid,
			SearchQuery:     turn.query,
		}
	}
	segment, err := s.appendWithRefs(ctx, turn.conversationId, entity.RoleAssistant, content, refs)
	if err != nil {
		return uuid.Nil, err
	}
	return segment.Id, nil
}

func (s *chatService) appendWithRefs(ctx context.Context, conversationId uuid.UUID, role, content string, refs []*entity.ContextReference) (*entity.Segment, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	version, err := uow.DocumentVersionRepository().FindLatest(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, apperror.NotFound("Conversation %s not found", conversationId)
	}

	now := s.now().UTC()
	segment, err := uow.SegmentRepository().AppendMessage(ctx, version.Id, role, content, now)
	if err != nil {
		return nil, err
	}
	if err := uow.DocumentRepository().Touch(ctx, conversationId, now); err != nil {
		return nil, err
	}

	for _, ref := range refs {
		ref.TargetSegmentId = segment.Id
	}
	if err := uow.ContextReferenceRepository().CreateBulk(ctx, refs); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.enqueueEmbedding(ctx, conversationId, segment.Id)
	return segment, nil
}

func (s *chatService) enqueueEmbedding(ctx context.Context, conversationId, segmentId uuid.UUID) {
	if s.publisherService == nil {
		return
	}
	payload, err := json.Marshal(dto.VectorizeSegmentMessage{
		SegmentId:  segmentId,
		DocumentId: conversationId,
	})
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn(chatModule, "Failed to queue segment for embedding", map[string]interface{}{
			"segment_id": segmentId.String(),
			"error":      err.Error(),
		})
	}
}

func (s *chatService) fail(ctx context.Context, span trace.Span, conversationId uuid.UUID, mode string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	details := map[string]interface{}{
		"conversation_id": conversationId.String(),
		"mode":            mode,
		"error":           err.Error(),
	}
	switch {
	case errors.Is(err, context.Canceled):
		metrics.ChatTurnsTotal.WithLabelValues(mode, "cancelled").Inc()
		s.logger.Info(chatModule, "Chat turn cancelled", details)
	case apperror.Is(err, apperror.KindValidation) || apperror.Is(err, apperror.KindNotFound):
		metrics.ChatTurnsTotal.WithLabelValues(mode, "failed").Inc()
		s.logger.Info(chatModule, "Chat turn rejected", details)
	default:
		metrics.ChatTurnsTotal.WithLabelValues(mode, "failed").Inc()
		s.logger.Error(chatModule, "Chat turn failed", details)
	}

	// the request context may already be gone; the event should still go out
	evtCtx := ctx
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var cancel context.CancelFunc
		evtCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	publishEvent(evtCtx, s.eventPublisher, s.logger, chatModule, events.New(events.ChatTurnFailed, map[string]interface{}{
		"conversation_id": conversationId.String(),
		"mode":            mode,
		"error":           err.Error(),
	}))
	return err
}

// generationError reports the caller's own cancellation as is, so a client
// going away is not counted as an upstream failure.
func generationError(ctx context.Context, err error, message string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperror.ProviderUnavailable(err, message)
}

func (s *chatService) complete(ctx context.Context, conversationId uuid.UUID, mode string, result *TurnResult) {
	metrics.ChatTurnsTotal.WithLabelValues(mode, "completed").Inc()

	data := map[string]interface{}{
		"conversation_id": conversationId.String(),
		"segment_id":      result.SegmentId.String(),
		"model":           result.Model,
		"mode":            mode,
		"context_count":   len(result.Context),
	}
	if result.TokensUsed != nil {
		data["tokens_used"] = *result.TokensUsed
	}
	s.logger.Info(chatModule, "Chat turn completed", data)
	publishEvent(ctx, s.eventPublisher, s.logger, chatModule, events.New(events.ChatTurnCompleted, data))
}

func ContextToDto(passages []retrieval.RetrievedContext) []dto.RetrievedContextResponse {
	res := make([]dto.RetrievedContextResponse, len(passages))
	for i, p := range passages {
		res[i] = dto.RetrievedContextResponse{
			SegmentId:     p.SegmentID,
			DocumentId:    p.DocumentID,
			DocumentTitle: p.DocumentTitle,
			SourceSystem:  p.SourceSystem,
			Content:       p.Content,
			Score:         p.Score,
			Rank:          p.Rank,
			SourceRole:    p.SourceRole,
			StartedAt:     p.StartedAt,
		}
	}
	return res
}

// ErrorEvent is the terminal event for a failed stream. It carries the same
// message the JSON error handler would.
func ErrorEvent(err error) dto.StreamEvent {
	_, message := serverutils.StatusOf(err)
	return dto.StreamEvent{Type: dto.StreamEventError, Error: message}
}

// StreamTrailer is the context and done events that close a successful stream.
func StreamTrailer(result *TurnResult) []dto.StreamEvent {
	segmentId := result.SegmentId
	return []dto.StreamEvent{
		{Type: dto.StreamEventContext, Context: ContextToDto(result.Context)},
		{Type: dto.StreamEventDone, SegmentId: &segmentId, Model: result.Model, TokensUsed: result.TokensUsed},
	}
}
