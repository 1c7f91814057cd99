package prompt

import (
	"fmt"
	"strings"

	"secondbrain-be/pkg/llm"
	"secondbrain-be/pkg/retrieval"
)

const (
	contextHeader = "\n--- RELEVANT CONTEXT FROM KNOWLEDGE BASE ---\n"
	contextFooter = "--- END CONTEXT ---\n"
)

var assistantRole = []string{
	"You are a helpful assistant with access to the user's knowledge base of previous conversations.",
	"Use the provided context to give informed, relevant answers.",
	"If the context doesn't contain relevant information, say so and answer based on your general knowledge.",
	"Always cite which conversation the information came from when using context.",
}

// ContextualBuilder assembles the message list for one chat turn.
type ContextualBuilder struct {
	passages     []retrieval.RetrievedContext
	history      []llm.Message
	userMessage  string
	historyLimit int
}

// NewContextualBuilder takes the conversation history without the message being answered.
func NewContextualBuilder(passages []retrieval.RetrievedContext, history []llm.Message, userMessage string, historyLimit int) *ContextualBuilder {
	return &ContextualBuilder{
		passages:     passages,
		history:      history,
		userMessage:  userMessage,
		historyLimit: historyLimit,
	}
}

// Build returns system, the trailing history window, then the user message.
func (b *ContextualBuilder) Build() []llm.Message {
	messages := []llm.Message{{Role: "system", Content: b.SystemPrompt()}}
	messages = append(messages, b.recentHistory()...)
	messages = append(messages, llm.Message{Role: "user", Content: b.userMessage})
	return messages
}

func (b *ContextualBuilder) SystemPrompt() string {
	parts := append([]string{}, assistantRole...)
	if len(b.passages) > 0 {
		parts = append(parts, contextHeader)
		for _, p := range b.passages {
			parts = append(parts, fmt.Sprintf("[From: %s (%s) - %s]\n%s\n", p.DocumentTitle, p.SourceSystem, p.SourceRole, p.Content))
		}
		parts = append(parts, contextFooter)
	}
	return strings.Join(parts, "\n")
}

func (b *ContextualBuilder) recentHistory() []llm.Message {
	if b.historyLimit <= 0 || len(b.history) == 0 {
		return nil
	}
	start := len(b.history) - b.historyLimit
	if start < 0 {
		start = 0
	}
	return b.history[start:]
}
