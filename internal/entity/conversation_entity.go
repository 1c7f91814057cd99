package entity

import (
	"math"
	"time"

	"github.com/google/uuid"

	"secondbrain-be/pkg/apperror"
	"secondbrain-be/pkg/retrieval"
)

const (
	NativeSourceSystem = "2brain"
	NativeSourcePath   = "2brain://native"
	ChatConfigKey      = "chat_config"
)

// ChatConfig is stored per conversation under raw_metadata.chat_config.
type ChatConfig struct {
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	ContextLimit    int     `json:"context_limit"`
	MaxContextChars int     `json:"max_context_chars"`
	WLexical        float64 `json:"w_lexical"`
	WVector         float64 `json:"w_vector"`
	HistoryLimit    int     `json:"include_conversation_history"`
}

func (c ChatConfig) Validate() error {
	if err := retrieval.ValidateWeight("w_lexical", c.WLexical); err != nil {
		return err
	}
	if err := retrieval.ValidateWeight("w_vector", c.WVector); err != nil {
		return err
	}
	if c.Model == "" {
		return apperror.Validation("model is required")
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 2 {
		return apperror.Validation("temperature must be within [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return apperror.Validation("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.ContextLimit < 0 {
		return apperror.Validation("context_limit must not be negative, got %d", c.ContextLimit)
	}
	if c.MaxContextChars <= 0 {
		return apperror.Validation("max_context_chars must be positive, got %d", c.MaxContextChars)
	}
	if c.HistoryLimit < 0 {
		return apperror.Validation("include_conversation_history must not be negative, got %d", c.HistoryLimit)
	}
	return nil
}

type Conversation struct {
	Id           uuid.UUID
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Config       *ChatConfig
}

type ChatMessage struct {
	SegmentId uuid.UUID
	Role      string
	Content   string
	CreatedAt *time.Time
}
