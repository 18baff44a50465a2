package agent

import (
	"encoding/json"

	"github.com/draco28/ragcore/internal/providers"
)

// StreamEventKind tags one element of an executeStream sequence (spec.md
// §4.13).
type StreamEventKind string

const (
	EventThought     StreamEventKind = "thought"
	EventAction      StreamEventKind = "action"
	EventToolCall    StreamEventKind = "toolCall"
	EventObservation StreamEventKind = "observation"
	EventDone        StreamEventKind = "done"
)

// StreamEvent is one element of Agent.ExecuteStream's lazy, finite sequence.
type StreamEvent struct {
	Kind        StreamEventKind
	Iteration   int
	Thought     string
	ToolCall    providers.ToolCall
	Observation Observation
	Output      string
	Trace       []Step
	Err         error
}

// Observation is the result of dispatching one tool call (spec.md §4.13).
type Observation struct {
	ToolCallID string
	ToolName   string
	Success    bool
	Result     ToolResult
	Error      string
	TimedOut   bool
}

// Step records one iteration's action+observation pair for the returned
// trace.
type Step struct {
	Iteration   int
	ToolCall    providers.ToolCall
	Observation Observation
}

// pendingToolCall accumulates one partial tool call by id while streaming
// (spec.md §4.13's aggregation grammar): a fragment may carry a new id
// (start a new entry), a name (set it), or an arguments chunk (append to a
// per-id buffer).
type pendingToolCall struct {
	id        string
	name      string
	argsChunk string
}

// toolCallAggregator accumulates StreamChunk fragments into complete tool
// calls, preserving first-seen order. Grounded on the teacher's streaming
// tool-call handling in runStreamLoop, generalized to this module's
// StreamChunk shape.
type toolCallAggregator struct {
	order   []string
	pending map[string]*pendingToolCall
}

func newToolCallAggregator() *toolCallAggregator {
	return &toolCallAggregator{pending: make(map[string]*pendingToolCall)}
}

// Add folds one StreamChunk of kind tool_call into the aggregator.
func (a *toolCallAggregator) Add(chunk providers.StreamChunk) {
	id := chunk.ToolCallID
	if id == "" {
		// No id on this fragment: fold into the most recently started entry
		// if one is still open, matching providers that stream name/args
		// chunks without repeating the id.
		if len(a.order) > 0 {
			id = a.order[len(a.order)-1]
		} else {
			id = "0"
		}
	}
	entry, ok := a.pending[id]
	if !ok {
		entry = &pendingToolCall{id: id}
		a.pending[id] = entry
		a.order = append(a.order, id)
	}
	if chunk.ToolCallName != "" {
		entry.name = chunk.ToolCallName
	}
	entry.argsChunk += chunk.ArgumentsChunk
}

// Finalize returns every pending entry with a name and parseable JSON
// arguments as a complete ToolCall; malformed or nameless entries are
// discarded (spec.md §4.13).
func (a *toolCallAggregator) Finalize() []providers.ToolCall {
	out := make([]providers.ToolCall, 0, len(a.order))
	for _, id := range a.order {
		entry := a.pending[id]
		if entry.name == "" {
			continue
		}
		args := entry.argsChunk
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			continue
		}
		out = append(out, providers.ToolCall{ID: entry.id, Name: entry.name, Arguments: args})
	}
	return out
}

// safeCallback invokes fn and swallows any panic, matching spec.md §4.13's
// "callback safety" requirement that user callbacks never propagate into
// the loop. onPanic, if non-nil, is called with the recovered value.
func safeCallback(fn func(), onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	fn()
}
