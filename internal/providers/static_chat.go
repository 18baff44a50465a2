package providers

import (
	"context"
	"fmt"
	"strings"
)

// StaticChatModel is a dependency-free ChatModelProvider: it echoes a
// deterministic, templated response derived from the last user message
// instead of calling out to a real model back-end (out of scope per
// spec.md §1/§6). It exists for the same reason StaticEmbeddingProvider
// does — cmd/ragctl's `agent run` and `rerank-demo` subcommands need a real
// ChatModelProvider to drive the agent loop and the LLM-scorer reranker
// without a network dependency.
type StaticChatModel struct {
	// Reply, if set, is returned verbatim instead of the templated echo.
	Reply string
}

var _ ChatModelProvider = (*StaticChatModel)(nil)

// NewStaticChatModel creates a deterministic chat model stand-in.
func NewStaticChatModel() *StaticChatModel {
	return &StaticChatModel{}
}

func (m *StaticChatModel) Chat(_ context.Context, messages []ChatMessage, _ ChatOptions) (ChatResponse, error) {
	if m.Reply != "" {
		return ChatResponse{Content: m.Reply, FinishReason: FinishStop}, nil
	}
	return ChatResponse{
		Content:      m.echo(messages),
		FinishReason: FinishStop,
	}, nil
}

func (m *StaticChatModel) StreamChat(ctx context.Context, messages []ChatMessage, opts ChatOptions, onChunk func(StreamChunk)) error {
	resp, err := m.Chat(ctx, messages, opts)
	if err != nil {
		return err
	}
	onChunk(StreamChunk{Kind: StreamChunkText, Text: resp.Content})
	onChunk(StreamChunk{Kind: StreamChunkDone, FinishReason: resp.FinishReason})
	return nil
}

func (m *StaticChatModel) Available() bool { return true }

func (m *StaticChatModel) CountTokens(messages []ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Content) / 4
	}
	return total
}

func (m *StaticChatModel) echo(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return fmt.Sprintf("[static] acknowledged: %s", strings.TrimSpace(messages[i].Content))
		}
	}
	return "[static] no user message found"
}
