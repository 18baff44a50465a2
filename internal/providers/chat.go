package providers

import "context"

// Role is a chat message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one piece of a (possibly multi-part) message body.
type ContentPart struct {
	Type string // "text" | "image" | "document"
	Text string
	URI  string // for image/document parts
}

// ChatMessage matches spec.md §3's ChatMessage data model.
type ChatMessage struct {
	Role       Role
	Content    string
	Parts      []ContentPart // used instead of Content when non-empty
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall // only set on assistant messages
}

// ToolCall is a single function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// ToolSchema describes a callable tool to the model back-end (spec.md §6's
// "Tool JSON shape").
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-Schema-compatible
}

// FinishReason enumerates why a chat call stopped producing output.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
)

// ChatUsage reports token accounting for a single call.
type ChatUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatOptions are the recognized per-call knobs (spec.md §6).
type ChatOptions struct {
	Temperature      float64
	MaxTokens        int
	StopSequences    []string
	Tools            []ToolSchema
	ResponseFormat   string
	TopP             float64
	TopK             int
	FrequencyPenalty float64
	PresencePenalty  float64
	Seed             int64
	User             string
	ThinkingEnabled  bool
	ThinkingBudget   int
}

// ChatResponse is the result of a single (non-streaming) chat call.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        ChatUsage
	Thinking     string
}

// StreamChunkKind tags a single streamed chunk.
type StreamChunkKind string

const (
	StreamChunkText     StreamChunkKind = "text"
	StreamChunkThinking StreamChunkKind = "thinking"
	StreamChunkToolCall StreamChunkKind = "tool_call"
	StreamChunkUsage    StreamChunkKind = "usage"
	StreamChunkDone     StreamChunkKind = "done"
)

// StreamChunk is one element of a ChatModelProvider.StreamChat sequence.
// ToolCallFragment mirrors the partial tool-call grammar in spec.md §4.13:
// any of ID/Name/ArgumentsChunk may be set independently.
type StreamChunk struct {
	Kind             StreamChunkKind
	Text             string
	ToolCallID       string
	ToolCallName     string
	ArgumentsChunk   string
	Usage            ChatUsage
	FinishReason     FinishReason
}

// ChatModelProvider is the capability interface for a chat completion
// back-end (spec.md §6). Grounded on intelligencedev-manifold's
// llm.Provider/Message/ToolCall/StreamHandler shape, adapted to this
// module's ChatMessage/StreamChunk types — model back-ends themselves are
// out of scope, only the interface is specified and exercised by fakes in
// tests.
type ChatModelProvider interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (ChatResponse, error)
	StreamChat(ctx context.Context, messages []ChatMessage, opts ChatOptions, onChunk func(StreamChunk)) error
	Available() bool
	CountTokens(messages []ChatMessage) int
}
