package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/resilience"
)

type fakeAgentModel struct {
	responses []providers.ChatResponse
	calls     int
}

func (f *fakeAgentModel) Chat(_ context.Context, _ []providers.ChatMessage, _ providers.ChatOptions) (providers.ChatResponse, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], nil
}

func (f *fakeAgentModel) StreamChat(_ context.Context, _ []providers.ChatMessage, _ providers.ChatOptions, _ func(providers.StreamChunk)) error {
	return nil
}
func (f *fakeAgentModel) Available() bool                             { return true }
func (f *fakeAgentModel) CountTokens(_ []providers.ChatMessage) int { return 0 }

func alwaysCallsTool(toolName string) *fakeAgentModel {
	resp := providers.ChatResponse{
		ToolCalls:    []providers.ToolCall{{ID: "call-1", Name: toolName, Arguments: `{}`}},
		FinishReason: providers.FinishToolCalls,
	}
	return &fakeAgentModel{responses: []providers.ChatResponse{resp}}
}

func TestAgent_ExecuteIterationBound(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeTool{name: "noop"})
	model := alwaysCallsTool("noop")
	agent := NewAgent(model, registry)

	result, err := agent.Execute(context.Background(), nil, Options{MaxIterations: 2})

	require.Error(t, err)
	ragErr, ok := err.(*resilience.RAGError)
	require.True(t, ok)
	assert.Equal(t, resilience.ErrCodeAgentError, ragErr.Code)
	assert.Equal(t, 2, model.calls)
	assert.LessOrEqual(t, len(result.Trace), 2)
}

func TestAgent_ExecuteReturnsFinalAnswerWithNoToolCalls(t *testing.T) {
	registry := NewRegistry()
	model := &fakeAgentModel{responses: []providers.ChatResponse{{Content: "the answer", FinishReason: providers.FinishStop}}}
	agent := NewAgent(model, registry)

	result, err := agent.Execute(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Output)
	assert.Empty(t, result.Trace)
}

func TestAgent_ExecuteMissingToolProducesObservationNotFatal(t *testing.T) {
	registry := NewRegistry()
	model := &fakeAgentModel{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "c1", Name: "missing", Arguments: `{}`}}, FinishReason: providers.FinishToolCalls},
		{Content: "done", FinishReason: providers.FinishStop},
	}}
	agent := NewAgent(model, registry)

	result, err := agent.Execute(context.Background(), nil, Options{MaxIterations: 5})
	require.NoError(t, err)
	require.Len(t, result.Trace, 1)
	assert.False(t, result.Trace[0].Observation.Success)
	assert.Equal(t, "done", result.Output)
}

func TestAgent_ExecuteAbortedByCancelledContext(t *testing.T) {
	registry := NewRegistry()
	model := alwaysCallsTool("noop")
	agent := NewAgent(model, registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Execute(ctx, nil, Options{})
	require.Error(t, err)
	ragErr, ok := err.(*resilience.RAGError)
	require.True(t, ok)
	assert.Equal(t, resilience.ErrCodeAborted, ragErr.Code)
}

func TestAgent_ExecuteStreamEmitsDoneOnFinalAnswer(t *testing.T) {
	registry := NewRegistry()
	model := &fakeAgentModel{responses: []providers.ChatResponse{{Content: "final", FinishReason: providers.FinishStop}}}
	agent := NewAgent(model, registry)

	var kinds []StreamEventKind
	for ev := range agent.ExecuteStream(context.Background(), nil, Options{}) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventDone {
			assert.Equal(t, "final", ev.Output)
			assert.NoError(t, ev.Err)
		}
	}
	assert.Contains(t, kinds, EventDone)
}

func TestAgent_ExecuteStreamEmitsToolCallAndObservation(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeTool{name: "noop"})
	model := &fakeAgentModel{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "c1", Name: "noop", Arguments: `{}`}}, FinishReason: providers.FinishToolCalls},
		{Content: "done", FinishReason: providers.FinishStop},
	}}
	agent := NewAgent(model, registry)

	var sawToolCall, sawObservation bool
	for ev := range agent.ExecuteStream(context.Background(), nil, Options{}) {
		switch ev.Kind {
		case EventToolCall:
			sawToolCall = true
		case EventObservation:
			sawObservation = true
			assert.True(t, ev.Observation.Success)
		}
	}
	assert.True(t, sawToolCall)
	assert.True(t, sawObservation)
}

func TestAgent_SessionPersistsAcrossRuns(t *testing.T) {
	registry := NewRegistry()
	model := &fakeAgentModel{responses: []providers.ChatResponse{{Content: "hi there", FinishReason: providers.FinishStop}}}
	mem := NewInMemoryMemoryProvider()
	agent := &Agent{Model: model, Tools: registry, Memory: mem, MaxIterations: DefaultMaxIterations}

	_, err := agent.Execute(context.Background(), []providers.ChatMessage{{Role: providers.RoleUser, Content: "hello"}}, Options{SessionID: "sess-1"})
	require.NoError(t, err)

	saved, err := mem.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, saved, 2) // user message + assistant final answer
	assert.Equal(t, "hello", saved[0].Content)
}
