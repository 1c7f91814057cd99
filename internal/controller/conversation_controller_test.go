package controller

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"secondbrain-be/internal/dto"
	"secondbrain-be/internal/pkg/serverutils"
	"secondbrain-be/internal/service"
	"secondbrain-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	err   error
	calls int
}

func (s *stubChat) Turn(ctx context.Context, conversationId uuid.UUID, req service.TurnRequest) (*service.TurnResult, error) {
	s.calls++
	return nil, s.err
}

func (s *stubChat) StreamTurn(ctx context.Context, conversationId uuid.UUID, req service.TurnRequest) (*service.TurnStream, error) {
	s.calls++
	return nil, s.err
}

func newConversationApp(chat service.IChatService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewConversationController(nil, chat).RegisterRoutes(app)
	return app
}

func postStream(t *testing.T, app *fiber.App, conversationId, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat/conversations/"+conversationId+"/messages/stream", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readEvents(t *testing.T, body io.Reader) []dto.StreamEvent {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var out []dto.StreamEvent
	for _, frame := range strings.Split(string(raw), "\n\n") {
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		var event dto.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &event))
		out = append(out, event)
	}
	return out
}

func TestStreamMessage_TurnFailureIsOneErrorEvent(t *testing.T) {
	convId := uuid.New()

	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "unknown conversation",
			err:     apperror.NotFound("Conversation %s not found", convId),
			message: "Conversation " + convId.String() + " not found",
		},
		{
			name:    "invalid config",
			err:     apperror.Validation("max_tokens must be positive"),
			message: "max_tokens must be positive",
		},
		{
			name:    "provider unreachable",
			err:     apperror.ProviderUnavailable(errors.New("dial tcp: connection refused"), "embedding provider failed"),
			message: "embedding provider failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newConversationApp(&stubChat{err: tt.err})

			resp := postStream(t, app, convId.String(), `{"content":"hello"}`)
			defer resp.Body.Close()

			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, "text/event-stream", resp.Header.Get(fiber.HeaderContentType))

			events := readEvents(t, resp.Body)
			require.Len(t, events, 1)
			assert.Equal(t, dto.StreamEventError, events[0].Type)
			assert.Equal(t, tt.message, events[0].Error)
		})
	}
}

func TestStreamMessage_MalformedRequestIsJSONError(t *testing.T) {
	chat := &stubChat{}
	app := newConversationApp(chat)

	badId := postStream(t, app, "not-a-uuid", `{"content":"hello"}`)
	defer badId.Body.Close()
	assert.Equal(t, fiber.StatusBadRequest, badId.StatusCode)
	assert.Contains(t, badId.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)

	noContent := postStream(t, app, uuid.NewString(), `{}`)
	defer noContent.Body.Close()
	assert.Equal(t, fiber.StatusBadRequest, noContent.StatusCode)

	assert.Zero(t, chat.calls)
}

func TestWriteSSE_Framing(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, writeSSE(w, dto.StreamEvent{Type: dto.StreamEventContent, Content: "line one\nline two"}))
	require.NoError(t, writeSSE(w, dto.StreamEvent{Type: dto.StreamEventError, Error: "boom"}))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n\n"))
	// newlines inside content are escaped by JSON, so frames never split early
	assert.Equal(t, 2, strings.Count(out, "\n\n"))

	events := readEvents(t, strings.NewReader(out))
	require.Len(t, events, 2)
	assert.Equal(t, "line one\nline two", events[0].Content)
	assert.Equal(t, "boom", events[1].Error)
}
