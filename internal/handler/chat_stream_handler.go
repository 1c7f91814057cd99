package handler

import (
	"context"
	"encoding/json"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/logger"
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const chatStreamModule = "ChatStreamHandler"

// ChatStreamHandler runs streaming turns over a websocket. Each client frame
// is a dto.ChatSocketRequest; turns on one connection run one at a time.
type ChatStreamHandler struct {
	chat   service.IChatService
	logger logger.ILogger
}

func NewChatStreamHandler(chat service.IChatService, log logger.ILogger) *ChatStreamHandler {
	return &ChatStreamHandler{chat: chat, logger: log}
}

func (h *ChatStreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat/ws", h.ServeWs)
}

func (h *ChatStreamHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	email, _ := c.Locals(serverutils.LocalUserEmail).(string)
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(chatStreamModule, "Chat socket opened", map[string]interface{}{"user": email})
		h.serve(conn)
		h.logger.Info(chatStreamModule, "Chat socket closed", map[string]interface{}{"user": email})
	})(c)
}

func (h *ChatStreamHandler) serve(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req dto.ChatSocketRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			if h.send(conn, service.ErrorEvent(fiber.NewError(fiber.StatusBadRequest, "Invalid message."))) != nil {
				return
			}
			continue
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			if h.send(conn, service.ErrorEvent(err)) != nil {
				return
			}
			continue
		}

		turn := service.TurnRequest{Content: req.Content}
		if req.ConfigOverride != nil {
			cfg := service.ConfigFromDto(req.ConfigOverride)
			turn.Override = &cfg
		}

		stream, err := h.chat.StreamTurn(ctx, req.ConversationId, turn)
		if err != nil {
			if h.send(conn, service.ErrorEvent(err)) != nil {
				return
			}
			continue
		}

		stream.Relay(func(event dto.StreamEvent) error {
			return h.send(conn, event)
		}, cancel)

		if ctx.Err() != nil {
			return
		}
	}
}

func (h *ChatStreamHandler) send(conn *websocket.Conn, event dto.StreamEvent) error {
	if err := conn.WriteJSON(event); err != nil {
		h.logger.Debug(chatStreamModule, "Chat socket write failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}
