package dto

import (
	"time"

	"github.com/google/uuid"
)

type ChatConfigDto struct {
	Model           string  `json:"model" validate:"required"`
	Temperature     float64 `json:"temperature" validate:"min=0,max=2"`
	MaxTokens       int     `json:"max_tokens" validate:"min=1"`
	ContextLimit    int     `json:"context_limit" validate:"min=0,max=100"`
	MaxContextChars int     `json:"max_context_chars" validate:"min=1"`
	WLexical        float64 `json:"w_lexical" validate:"min=0,max=1"`
	WVector         float64 `json:"w_vector" validate:"min=0,max=1"`
	HistoryLimit    int     `json:"include_conversation_history" validate:"min=0,max=100"`
}

type CreateConversationRequest struct {
	Title  string         `json:"title" validate:"required,max=500"`
	Config *ChatConfigDto `json:"config" validate:"omitempty"`
}

type CreateConversationResponse struct {
	Id    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// UpdateConversationRequest patches title and/or replaces the stored config.
type UpdateConversationRequest struct {
	Title  *string        `json:"title" validate:"omitempty,min=1,max=500"`
	Config *ChatConfigDto `json:"config" validate:"omitempty"`
}

type ConversationResponse struct {
	Id           uuid.UUID      `json:"id"`
	Title        string         `json:"title"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	MessageCount int            `json:"message_count"`
	Config       *ChatConfigDto `json:"config"`
}

type MessageResponse struct {
	SegmentId uuid.UUID  `json:"segment_id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt *time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	Content        string         `json:"content" validate:"required"`
	ConfigOverride *ChatConfigDto `json:"config_override" validate:"omitempty"`
}

type RetrievedContextResponse struct {
	SegmentId     uuid.UUID  `json:"segment_id"`
	DocumentId    uuid.UUID  `json:"document_id"`
	DocumentTitle string     `json:"document_title"`
	SourceSystem  string     `json:"source_system"`
	Content       string     `json:"content"`
	Score         float64    `json:"score"`
	Rank          int        `json:"rank"`
	SourceRole    string     `json:"source_role"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

type ChatResponse struct {
	Content     string                     `json:"content"`
	SegmentId   uuid.UUID                  `json:"segment_id"`
	ContextUsed []RetrievedContextResponse `json:"context_used"`
	Model       string                     `json:"model"`
	TokensUsed  *int                       `json:"tokens_used"`
}

// ContextSourceResponse is one stored "view sources" row.
type ContextSourceResponse struct {
	SegmentId     uuid.UUID `json:"segment_id"`
	DocumentId    uuid.UUID `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	SourceSystem  string    `json:"source_system"`
	Content       string    `json:"content"`
	Score         float64   `json:"score"`
	Rank          int       `json:"rank"`
	SourceRole    string    `json:"source_role"`
	SearchMethod  string    `json:"search_method"`
	SearchQuery   string    `json:"search_query,omitempty"`
}

const (
	StreamEventContent = "content"
	StreamEventContext = "context"
	StreamEventDone    = "done"
	StreamEventError   = "error"
)

// StreamEvent is one SSE / websocket frame of a streaming turn.
type StreamEvent struct {
	Type       string                     `json:"type"`
	Content    string                     `json:"content,omitempty"`
	Context    []RetrievedContextResponse `json:"context,omitempty"`
	SegmentId  *uuid.UUID                 `json:"segment_id,omitempty"`
	Model      string                     `json:"model,omitempty"`
	TokensUsed *int                       `json:"tokens_used"`
	Error      string                     `json:"error,omitempty"`
}

type VectorizeSegmentMessage struct {
	SegmentId  uuid.UUID `json:"segment_id"`
	DocumentId uuid.UUID `json:"document_id"`
}

type ListConversationsRequest struct {
	Limit  int `query:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

type UpdateConversationResponse struct {
	Status string    `json:"status"`
	Id     uuid.UUID `json:"id"`
}

// ChatSocketRequest is one client frame on the chat websocket.
type ChatSocketRequest struct {
	ConversationId uuid.UUID      `json:"conversation_id" validate:"required"`
	Content        string         `json:"content" validate:"required"`
	ConfigOverride *ChatConfigDto `json:"config_override" validate:"omitempty"`
}
