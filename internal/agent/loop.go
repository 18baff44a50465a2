package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/resilience"
)

var tracer = otel.Tracer("github.com/draco28/ragcore/internal/agent")

// DefaultMaxIterations matches spec.md §4.13's default iteration bound.
const DefaultMaxIterations = 10

// Options configures one Execute/ExecuteStream run.
type Options struct {
	MaxIterations int
	// SessionID, if non-empty and a MemoryProvider is configured, causes the
	// agent to load prior messages on run start and save the final
	// transcript on run end (spec.md §4.15).
	SessionID string
	ChatOpts  providers.ChatOptions

	OnThought     func(string)
	OnToolCall    func(providers.ToolCall)
	OnObservation func(Observation)
}

// Result is what Execute returns on success (spec.md §4.13's `{output, trace}`).
type Result struct {
	Output string
	Trace  []Step
}

// Agent runs the bounded Thought/Action/Observation loop (spec.md §4.13),
// grounded on the teacher's Engine.Run/runLoop/dispatchTools, adapted from
// the teacher's unbounded-by-default engine to this module's hard
// maxIterations contract and narrowed tool/model interfaces.
type Agent struct {
	Model         providers.ChatModelProvider
	Tools         *Registry
	Memory        MemoryProvider
	MaxIterations int
	System        string

	toolCallSeq uint64
}

// nextToolCallID mints a synthetic tool-call id, grounded on the teacher's
// atomic-counter-backed nextToolCallID but formatted as a uuid so ids never
// collide across concurrent Agent instances sharing a trace/log sink.
func (a *Agent) nextToolCallID() string {
	atomic.AddUint64(&a.toolCallSeq, 1)
	return uuid.NewString()
}

// ensureToolCallIDs mints a fresh id for any tool call with an empty or
// already-used id, never reusing one already seen in msgs (spec.md's
// supplemented "tool-call ID deduplication" feature, grounded on
// intelligencedev-manifold/internal/agent/engine.go's ensureToolCallIDs).
func (a *Agent) ensureToolCallIDs(msgs []providers.ChatMessage, toolCalls []providers.ToolCall) []providers.ToolCall {
	used := make(map[string]struct{})
	for _, msg := range msgs {
		if msg.Role != providers.RoleAssistant {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if id := strings.TrimSpace(tc.ID); id != "" {
				used[id] = struct{}{}
			}
		}
	}
	for i := range toolCalls {
		id := strings.TrimSpace(toolCalls[i].ID)
		if id == "" {
			id = a.nextToolCallID()
		}
		for {
			if _, seen := used[id]; !seen {
				break
			}
			id = a.nextToolCallID()
		}
		toolCalls[i].ID = id
		used[id] = struct{}{}
	}
	return toolCalls
}

// NewAgent builds an Agent with DefaultMaxIterations unless overridden by
// the caller via the MaxIterations field after construction.
func NewAgent(model providers.ChatModelProvider, tools *Registry) *Agent {
	return &Agent{Model: model, Tools: tools, MaxIterations: DefaultMaxIterations}
}

// chatOptsWithTools returns opts.ChatOpts with Tools populated from the
// registry, without mutating the caller's Options.
func (a *Agent) chatOptsWithTools(opts Options) providers.ChatOptions {
	chatOpts := opts.ChatOpts
	chatOpts.Tools = a.Tools.List()
	return chatOpts
}

func (a *Agent) maxIterations() int {
	if a.MaxIterations > 0 {
		return a.MaxIterations
	}
	return DefaultMaxIterations
}

// Execute runs the loop to completion or failure (spec.md §4.13). Each run
// gets its own trace id (a fresh uuid, independent of any caller-supplied
// SessionID) attached to the root span so every iteration's span can be
// correlated back to it.
func (a *Agent) Execute(ctx context.Context, initialMessages []providers.ChatMessage, opts Options) (Result, error) {
	runID := uuid.NewString()
	ctx, rootSpan := tracer.Start(ctx, "agent.run", trace.WithAttributes(attribute.String("agent.run_id", runID)))
	defer rootSpan.End()

	messages, err := a.loadSession(ctx, opts, initialMessages)
	if err != nil {
		return Result{}, err
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = a.maxIterations()
	}

	var trace_ []Step
	var output string

	for iteration := 1; iteration <= maxIter; iteration++ {
		iterCtx, iterSpan := tracer.Start(ctx, "agent.iteration", trace.WithAttributes(
			attribute.String("agent.run_id", runID), attribute.Int("agent.iteration", iteration)))

		if err := iterCtx.Err(); err != nil {
			iterSpan.End()
			return Result{}, resilience.New(resilience.ErrCodeAborted, "agent run aborted", err)
		}

		resp, err := a.Model.Chat(iterCtx, messages, a.chatOptsWithTools(opts))
		if err != nil {
			iterSpan.End()
			return Result{}, resilience.Wrap(resilience.ErrCodeProviderError, err)
		}
		resp.ToolCalls = a.ensureToolCallIDs(messages, resp.ToolCalls)

		messages = append(messages, providers.ChatMessage{
			Role:      providers.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			output = resp.Content
			iterSpan.End()
			a.saveSession(ctx, opts, messages)
			return Result{Output: output, Trace: trace_}, nil
		}

		if opts.OnThought != nil && resp.Content != "" {
			safeCallback(func() { opts.OnThought(resp.Content) }, nil)
		}

		for _, tc := range resp.ToolCalls {
			if opts.OnToolCall != nil {
				safeCallback(func() { opts.OnToolCall(tc) }, nil)
			}
			obs := a.dispatch(iterCtx, tc)
			if opts.OnObservation != nil {
				safeCallback(func() { opts.OnObservation(obs) }, nil)
			}
			trace_ = append(trace_, Step{Iteration: iteration, ToolCall: tc, Observation: obs})
			messages = append(messages, observationMessage(tc, obs))
		}
		iterSpan.End()
	}

	a.saveSession(ctx, opts, messages)
	return Result{}, resilience.New(resilience.ErrCodeAgentError, "maxIterations exceeded", nil).
		WithDetail("maxIterations", maxIter)
}

// ExecuteStream runs the loop, emitting a StreamEvent per thought/action/
// toolCall/observation/done onto the returned channel, which is closed when
// the run finishes (successfully or not). The final event is always either
// EventDone (with Output/Trace set) or carries Err on failure.
func (a *Agent) ExecuteStream(ctx context.Context, initialMessages []providers.ChatMessage, opts Options) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)

		runID := uuid.NewString()
		ctx, rootSpan := tracer.Start(ctx, "agent.run", trace.WithAttributes(attribute.String("agent.run_id", runID)))
		defer rootSpan.End()

		messages, err := a.loadSession(ctx, opts, initialMessages)
		if err != nil {
			out <- StreamEvent{Kind: EventDone, Err: err}
			return
		}

		maxIter := opts.MaxIterations
		if maxIter <= 0 {
			maxIter = a.maxIterations()
		}

		var trace_ []Step

		for iteration := 1; iteration <= maxIter; iteration++ {
			iterCtx, iterSpan := tracer.Start(ctx, "agent.iteration", trace.WithAttributes(
				attribute.String("agent.run_id", runID), attribute.Int("agent.iteration", iteration)))

			if err := iterCtx.Err(); err != nil {
				iterSpan.End()
				out <- StreamEvent{Kind: EventDone, Iteration: iteration, Err: resilience.New(resilience.ErrCodeAborted, "agent run aborted", err)}
				return
			}

			resp, err := a.Model.Chat(iterCtx, messages, a.chatOptsWithTools(opts))
			if err != nil {
				iterSpan.End()
				out <- StreamEvent{Kind: EventDone, Iteration: iteration, Err: resilience.Wrap(resilience.ErrCodeProviderError, err)}
				return
			}
			resp.ToolCalls = a.ensureToolCallIDs(messages, resp.ToolCalls)

			messages = append(messages, providers.ChatMessage{
				Role:      providers.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})

			if resp.Content != "" {
				out <- StreamEvent{Kind: EventThought, Iteration: iteration, Thought: resp.Content}
			}

			if len(resp.ToolCalls) == 0 {
				iterSpan.End()
				a.saveSession(ctx, opts, messages)
				out <- StreamEvent{Kind: EventDone, Iteration: iteration, Output: resp.Content, Trace: trace_}
				return
			}

			for _, tc := range resp.ToolCalls {
				out <- StreamEvent{Kind: EventAction, Iteration: iteration, ToolCall: tc}
				out <- StreamEvent{Kind: EventToolCall, Iteration: iteration, ToolCall: tc}
				obs := a.dispatch(iterCtx, tc)
				trace_ = append(trace_, Step{Iteration: iteration, ToolCall: tc, Observation: obs})
				messages = append(messages, observationMessage(tc, obs))
				out <- StreamEvent{Kind: EventObservation, Iteration: iteration, ToolCall: tc, Observation: obs}
			}
			iterSpan.End()
		}

		a.saveSession(ctx, opts, messages)
		out <- StreamEvent{Kind: EventDone, Trace: trace_, Err: resilience.New(resilience.ErrCodeAgentError, "maxIterations exceeded", nil).
			WithDetail("maxIterations", maxIter)}
	}()
	return out
}

// dispatch executes one tool call and converts any failure into a
// distinguishable observation rather than a fatal error (spec.md §4.13 step
// 4): a missing tool or validation failure is surfaced, not fatal; a
// timeout is distinguished via Observation.TimedOut.
func (a *Agent) dispatch(ctx context.Context, tc providers.ToolCall) Observation {
	var args map[string]any
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return Observation{ToolCallID: tc.ID, ToolName: tc.Name, Success: false, Error: "invalid tool arguments: " + err.Error()}
		}
	}

	result, err := a.Tools.Dispatch(ctx, tc.Name, args)
	if err == nil {
		return Observation{ToolCallID: tc.ID, ToolName: tc.Name, Success: true, Result: result}
	}

	obs := Observation{ToolCallID: tc.ID, ToolName: tc.Name, Success: false, Error: err.Error()}
	var ragErr *resilience.RAGError
	if as, ok := err.(*resilience.RAGError); ok {
		ragErr = as
		if ragErr.Code == resilience.ErrCodeToolTimeout {
			obs.TimedOut = true
		}
	}
	return obs
}

// observationMessage serializes obs as JSON and wraps it in a tool message
// carrying tc.ID, per spec.md §4.13 step 4.
func observationMessage(tc providers.ToolCall, obs Observation) providers.ChatMessage {
	payload := map[string]any{"success": obs.Success}
	if obs.Success {
		payload["result"] = obs.Result
	} else {
		payload["error"] = obs.Error
		if obs.TimedOut {
			payload["timedOut"] = true
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"success":false,"error":"failed to serialize observation"}`)
	}
	return providers.ChatMessage{Role: providers.RoleTool, Content: string(body), ToolCallID: tc.ID, Name: tc.Name}
}

func (a *Agent) loadSession(ctx context.Context, opts Options, initial []providers.ChatMessage) ([]providers.ChatMessage, error) {
	if a.Memory == nil || strings.TrimSpace(opts.SessionID) == "" {
		return initial, nil
	}
	loaded, err := a.Memory.Load(ctx, opts.SessionID)
	if err != nil {
		return nil, resilience.Wrap(resilience.ErrCodeCacheError, err)
	}
	if len(loaded) == 0 {
		return initial, nil
	}
	return append(loaded, initial...), nil
}

func (a *Agent) saveSession(ctx context.Context, opts Options, messages []providers.ChatMessage) {
	if a.Memory == nil || strings.TrimSpace(opts.SessionID) == "" {
		return
	}
	_ = a.Memory.Save(ctx, opts.SessionID, messages) // save failures are non-fatal to the run that produced them
}
