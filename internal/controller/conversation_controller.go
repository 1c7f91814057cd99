package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultConversationLimit = 50

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	GetConfig(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	StreamMessage(ctx *fiber.Ctx) error
	SegmentContext(ctx *fiber.Ctx) error
}

type conversationController struct {
	conversations service.IConversationService
	chat          service.IChatService
}

func NewConversationController(conversations service.IConversationService, chat service.IChatService) IConversationController {
	return &conversationController{conversations: conversations, chat: chat}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat")
	h.Post("/conversations", c.Create)
	h.Get("/conversations", c.List)
	h.Get("/conversations/:id", c.Show)
	h.Patch("/conversations/:id", c.Update)
	h.Delete("/conversations/:id", c.Delete)
	h.Get("/conversations/:id/config", c.GetConfig)
	h.Get("/conversations/:id/messages", c.Messages)
	h.Post("/conversations/:id/messages", c.SendMessage)
	h.Post("/conversations/:id/messages/stream", c.StreamMessage)
	h.Get("/segments/:id/context", c.SegmentContext)
}

func (c *conversationController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversations.Create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(res)
}

func (c *conversationController) List(ctx *fiber.Ctx) error {
	req := dto.ListConversationsRequest{Limit: defaultConversationLimit}
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversations.List(ctx.UserContext(), req.Limit, req.Offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversations", res))
}

func (c *conversationController) Show(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.conversations.Show(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversation", res))
}

func (c *conversationController) Update(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.conversations.Update(ctx.UserContext(), id, &req); err != nil {
		return err
	}

	return ctx.JSON(dto.UpdateConversationResponse{Status: "updated", Id: id})
}

func (c *conversationController) Delete(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.conversations.Delete(ctx.UserContext(), id); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *conversationController) GetConfig(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.conversations.GetConfig(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversation config", res))
}

func (c *conversationController) Messages(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.conversations.Messages(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *conversationController) SendMessage(ctx *fiber.Ctx) error {
	id, turn, err := parseTurn(ctx)
	if err != nil {
		return err
	}

	res, err := c.chat.Turn(ctx.UserContext(), id, turn)
	if err != nil {
		return err
	}

	return ctx.JSON(dto.ChatResponse{
		Content:     res.Content,
		SegmentId:   res.SegmentId,
		ContextUsed: service.ContextToDto(res.Context),
		Model:       res.Model,
		TokensUsed:  res.TokensUsed,
	})
}

// StreamMessage answers with server-sent events. A malformed request is a
// plain JSON error; once the turn is accepted every failure, including one
// before generation starts, arrives as a single error event.
func (c *conversationController) StreamMessage(ctx *fiber.Ctx) error {
	id, turn, err := parseTurn(ctx)
	if err != nil {
		return err
	}

	// the turn outlives the handler, which returns before the body is written
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	stream, err := c.chat.StreamTurn(streamCtx, id, turn)
	setEventStreamHeaders(ctx)
	if err != nil {
		cancel()
		event := service.ErrorEvent(err)
		ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			_ = writeSSE(w, event)
		})
		return nil
	}

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		stream.Relay(func(event dto.StreamEvent) error {
			return writeSSE(w, event)
		}, cancel)
	})
	return nil
}

func (c *conversationController) SegmentContext(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.conversations.SegmentContext(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get segment context", res))
}

func parseTurn(ctx *fiber.Ctx) (uuid.UUID, service.TurnRequest, error) {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return uuid.Nil, service.TurnRequest{}, err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return uuid.Nil, service.TurnRequest{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return uuid.Nil, service.TurnRequest{}, err
	}

	return id, toTurnRequest(req.Content, req.ConfigOverride), nil
}

func toTurnRequest(content string, override *dto.ChatConfigDto) service.TurnRequest {
	turn := service.TurnRequest{Content: content}
	if override != nil {
		cfg := service.ConfigFromDto(override)
		turn.Override = &cfg
	}
	return turn
}

func setEventStreamHeaders(ctx *fiber.Ctx) {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")
}

func writeSSE(w *bufio.Writer, event dto.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
