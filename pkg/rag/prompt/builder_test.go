package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondbrain-be/pkg/llm"
	"secondbrain-be/pkg/retrieval"
)

func TestBuild_NoContextHasNoFrame(t *testing.T) {
	msgs := NewContextualBuilder(nil, nil, "hi", 10).Build()

	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.NotContains(t, msgs[0].Content, "RELEVANT CONTEXT")
	assert.Equal(t, llm.Message{Role: "user", Content: "hi"}, msgs[1])
}

func TestBuild_ContextBlockFormat(t *testing.T) {
	passages := []retrieval.RetrievedContext{
		{DocumentTitle: "Trip planning", SourceSystem: "chatgpt", SourceRole: "assistant", Content: "Book the 9am train."},
		{DocumentTitle: "Budget", SourceSystem: "claude", SourceRole: "user", Content: "Cap is 400 EUR."},
	}

	system := NewContextualBuilder(passages, nil, "q", 10).SystemPrompt()

	assert.Contains(t, system, "\n\n--- RELEVANT CONTEXT FROM KNOWLEDGE BASE ---\n\n[From: Trip planning (chatgpt) - assistant]\nBook the 9am train.\n")
	assert.Contains(t, system, "[From: Budget (claude) - user]\nCap is 400 EUR.\n\n--- END CONTEXT ---\n")
	assert.True(t, strings.HasPrefix(system, "You are a helpful assistant"))
	assert.Less(t, strings.Index(system, "Trip planning"), strings.Index(system, "Budget"))
}

func TestBuild_HistoryWindow(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "1"},
		{Role: "assistant", Content: "2"},
		{Role: "user", Content: "3"},
		{Role: "assistant", Content: "4"},
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"last two", 2, []string{"3", "4"}},
		{"larger than history", 10, []string{"1", "2", "3", "4"}},
		{"disabled", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := NewContextualBuilder(nil, history, "now", tt.limit).Build()

			var got []string
			for _, m := range msgs[1 : len(msgs)-1] {
				got = append(got, m.Content)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "now", msgs[len(msgs)-1].Content)
		})
	}
}
