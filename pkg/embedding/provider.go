package embedding

import "context"

const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

type EmbeddingResponse struct {
	Model      string
	Values     []float32
	TokensUsed int
}

type Option func(*Options)

type Options struct {
	Model    string // Override default model
	TaskType string
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithTaskType(taskType string) Option {
	return func(o *Options) {
		o.TaskType = taskType
	}
}

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, opts ...Option) (*EmbeddingResponse, error)
	DefaultModel() string
}

func resolveOptions(defaultModel string, opts []Option) *Options {
	options := &Options{Model: defaultModel}
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		options.Model = defaultModel
	}
	return options
}
