package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// Apply resolves options on top of provider defaults.
func Apply(defaults Options, opts ...Option) *Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	if o.Model == "" {
		o.Model = defaults.Model
	}
	return &o
}

type ChatResponse struct {
	Content    string
	Model      string
	TokensUsed int
}

// StreamChunk is one piece of streamed output. A chunk with Err set is the
// last one sent before the channel closes.
type StreamChunk struct {
	Content string
	Err     error
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the full response
	Chat(ctx context.Context, history []Message, options ...Option) (*ChatResponse, error)

	// Stream sends the history and emits content as the model produces it.
	// The channel is closed when generation ends or ctx is cancelled.
	Stream(ctx context.Context, history []Message, options ...Option) (<-chan StreamChunk, error)

	DefaultModel() string
}

// Send delivers a chunk unless ctx is done first.
func Send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
